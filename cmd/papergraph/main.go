package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/papergraph/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
