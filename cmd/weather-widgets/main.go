package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/i474232898/weather-widgets/internal/cli"
)

func main() {
	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.New().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("weather-widgets: %v", err)
	}
}
