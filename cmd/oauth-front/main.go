package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dgellow/oauth-front/internal"
	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/log"
)

var BuildVersion = "dev"

func validateConfig(cfg config.Config) error {
	missing := cfg.Missing()
	if len(missing) == 0 {
		fmt.Println("Result: PASS")
		return nil
	}

	fmt.Printf("Missing configuration (%d):\n", len(missing))
	for _, item := range missing {
		fmt.Printf("  - %s\n", item)
	}
	fmt.Println("Result: FAIL")
	return fmt.Errorf("configuration incomplete: %d missing item(s)", len(missing))
}

func main() {
	envFile := flag.String("env-file", "", "optional .env file to load before reading the environment")
	version := flag.Bool("version", false, "print version and exit")
	validate := flag.Bool("validate", false, "validate configuration and exit")
	flag.Parse()

	if *version {
		fmt.Println(BuildVersion)
		return
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.LogError("Failed to load env file: %v", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if *validate {
		if err := validateConfig(cfg); err != nil {
			os.Exit(1)
		}
		return
	}

	log.LogInfoWithFields("main", "Starting oauth-front", map[string]any{
		"version": BuildVersion,
		"addr":    cfg.Addr,
	})

	app, err := internal.NewOAuthFront(cfg)
	if err != nil {
		log.LogError("Failed to create OAuth broker: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
