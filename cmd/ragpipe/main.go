package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/meridianhq/ragpipe/internal/adapters/driving/cli"
)

func main() {
	// Secrets may live in a local .env file; absence is fine.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
