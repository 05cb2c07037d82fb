// Package main is a diagnostic tool for database connectivity. It connects with the
// server's configuration, reports the schema version, and prints row counts for the
// console tables. It exits non-zero on any failure so it can gate CI/CD steps.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/next-cloud-ai/console/internal/config"
	"github.com/next-cloud-ai/console/internal/db"
	"github.com/next-cloud-ai/console/internal/db/repositories"
)

type counter interface {
	Count(ctx context.Context) (int64, error)
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.Driver, cfg.Database.GetDSN(), 1, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	fmt.Printf("Connected: %s\n", cfg.Database.GetMaskedDSN())

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []struct {
		name string
		repo counter
	}{
		{"users", repositories.NewUserRepository(database)},
		{"models", repositories.NewModelRepository(database)},
		{"deployments", repositories.NewDeploymentRepository(database, cfg.Deployments.EndpointBaseURL, cfg.Deployments.APIKeyPrefix)},
	}

	fmt.Println("\n=== ROW COUNTS ===")
	for _, t := range tables {
		n, err := t.repo.Count(ctx)
		if err != nil {
			log.Fatalf("Count %s failed: %v", t.name, err)
		}
		fmt.Printf("%-12s %d\n", t.name, n)
	}
}
