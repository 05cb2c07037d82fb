// Package main generates a random session signing secret for NCAI_AUTH_JWT_SECRET.
//
//	go run ./scripts/generate-key.go
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func main() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Session Signing Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nNCAI_AUTH_JWT_SECRET=%s\n\n", hex.EncodeToString(secret))
	fmt.Println("Keep this value out of source control. Rotating it invalidates")
	fmt.Println("every session token issued so far.")
}
