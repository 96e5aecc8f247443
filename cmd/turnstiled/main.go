package main

import (
	"context"
	"log"
	"os"

	"turnstile/internal/config"
	"turnstile/internal/daemonrun"
)

func main() {
	configPath, opts := resolveOptions(os.Getenv)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("turnstiled: %v", err)
	}
}
