package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"curriculum-backend/internal/config"
	"curriculum-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	logger.Init(cfg.LogLevel)

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
