package main

import (
	"flag"
	"log"
	"os"

	"github.com/aussiebroadwan/userspace/internal/userspace/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("USERSPACE_CONFIG"), "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
