package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Prints a bcrypt hash for API_KEY_HASH. With no argument a random key is
// generated and printed first.
func main() {
	key := ""
	if len(os.Args) >= 2 {
		key = os.Args[1]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		key = hex.EncodeToString(buf)
		fmt.Fprintf(os.Stderr, "Generated key: %s\n", key)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), 12)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}
