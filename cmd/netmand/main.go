// Package main provides the entry point for the netmand network connection
// manager daemon. It loads the configuration, assembles the server, and runs
// until interrupted, shutting down cleanly so in-flight connection work can
// complete.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netmand/internal/config"
	"netmand/internal/server"
)

const defaultConfigPath = "/etc/netmand/config.yaml"

func main() {
	log.Println("Starting netmand...")

	path := os.Getenv("NETMAND_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No config at %s, writing defaults", path)
		cfg, err = config.Init(path)
	}
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal("Failed to build server: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("Server failed: ", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
