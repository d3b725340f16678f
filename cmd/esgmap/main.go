package main

import (
	"github.com/JonMunkholm/esgmap/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cli.Execute()
}
