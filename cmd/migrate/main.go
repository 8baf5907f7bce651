package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/config"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/db"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/logging"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/migrate"
)

const appName = "city-weather-migrate"

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <command>\n  up  apply pending schema migrations\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, appName)

	switch os.Args[1] {
	case "up":
		conn, err := db.Open(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "db open: %v\n", err)
			os.Exit(1)
		}
		n, err := migrate.Run(context.Background(), conn, logger)
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "err", closeErr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d migration(s) applied\n", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
