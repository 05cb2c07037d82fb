// Package main hashes a password with the configured algorithm (bcrypt or argon2id).
// It is used to seed or reset a users.password_hash value without running the server.
//
//	go run ./cmd/hash 'new-password'
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/next-cloud-ai/console/internal/auth"
	"github.com/next-cloud-ai/console/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <password>", os.Args[0])
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Password.Algorithm, cfg.Auth.Password.BcryptCost)
	if err != nil {
		log.Fatal(err)
	}

	hash, err := hasher.Hash(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
