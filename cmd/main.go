package main

import (
	"flag"
	"fmt"
	"os"

	"lusotown-monitoring/internal/app"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if *configFile == "" {
		*configFile = os.Getenv("LUSOTOWN_CONFIG_FILE")
	}
	if *configFile == "" {
		*configFile = "configs/config.yaml"
	}

	application, err := app.New(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
