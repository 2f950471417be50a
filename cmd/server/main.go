package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Moonlit/backend/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "HTTP listen address")
	flag.StringVar(&cfg.Stream.SettingsPath, "settings", cfg.Stream.SettingsPath, "Streaming settings file (.toml or .yaml)")
	flag.StringVar(&cfg.Transport.Driver, "transport", cfg.Transport.Driver, "Connection driver: null or helper")
	flag.StringVar(&cfg.Transport.HelperPath, "helper", cfg.Transport.HelperPath, "Streaming helper binary")
	flag.IntVar(&cfg.Input.Gamepads, "gamepads", cfg.Input.Gamepads, "Fixed controller count, -1 to detect")
	flag.DurationVar(&cfg.Stream.HostCallTimeout, "host-call-timeout", cfg.Stream.HostCallTimeout, "Bound on each host and transport call, 0 for none")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Logging.Development = *dev
	if *dev && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	// an active session gets time to quit the app on the host
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}
