/*
main.go - Application entry point

PURPOSE:
  Loads configuration, initializes logging and runs the borderel command
  tree (see cli/).

STARTUP SEQUENCE:
  1. Load .env (optional)
  2. Read configuration from the environment
  3. Initialize the logger
  4. Execute the requested command

ENVIRONMENT:
  DB_DRIVER, DB_DSN, HTTP_PORT, LOG_LEVEL, LOG_FORMAT, LOG_TIME_FORMAT,
  LOG_OUTPUT. See config/config.go.
*/
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/cinemacentral/borderel/cli"
	"github.com/cinemacentral/borderel/config"
	"github.com/cinemacentral/borderel/logger"
)

func main() {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cli.Execute(cfg)
}
