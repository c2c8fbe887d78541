package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/pkg/log"
)

func main() {
	fmt.Println("Mudra - Indian Sign Language Recognition")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := log.Init(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to start")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error(log.Fields{"error": err.Error()}, "Shutdown cleanup failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Error(log.Fields{"error": err.Error()}, "Server failed")
		return
	}
	log.Info(nil, "Server stopped")
}
