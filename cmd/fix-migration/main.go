// Package main is a repair tool for dirty migration state. Dirty state occurs when
// golang-migrate marks a version as in-progress but the run was interrupted before
// it completed. This tool forces the recorded version (the current one by default,
// or the version given as the first argument) and clears the dirty flag so the
// server can retry migrations on its next start.
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/next-cloud-ai/console/internal/config"
	"github.com/next-cloud-ai/console/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.Driver, cfg.Database.GetDSN(), 1, 1)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check migration state: %v", err)
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	target := int(version)
	if len(os.Args) > 1 {
		target, err = strconv.Atoi(os.Args[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", os.Args[1], err)
		}
	}

	if !dirty && target == int(version) {
		log.Println("Migration state is already clean")
		return
	}

	if err := db.ForceMigrationVersion(database, target); err != nil {
		log.Fatalf("Failed to force migration version: %v", err)
	}

	version, dirty, err = db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to check final migration state: %v", err)
	}
	log.Printf("Final migration state: version=%d, dirty=%v", version, dirty)
}
