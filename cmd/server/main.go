package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"garden-siege/server/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.New(cfg).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("%v", err)
	}
}
