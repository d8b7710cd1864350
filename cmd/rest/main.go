package main

import (
	"context"
	"log"

	"resonance-field-be/internal/bootstrap"
	"resonance-field-be/internal/config"
	"resonance-field-be/internal/server"
	"resonance-field-be/internal/tracer"
)

func main() {
	// 0. Initialize tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load configuration
	cfg := config.Load()

	// 2. Bootstrap dependencies (container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start background services
	ctx := context.Background()
	go func() {
		log.Println("Background: starting presence feed...")
		if err := container.PresenceFeed.Run(ctx); err != nil {
			log.Printf("Background presence feed error: %v", err)
		}
	}()
	go container.SessionService.RunSweeper(ctx)

	// 4. Initialize server
	srv := server.New(cfg, container)

	// 5. Run server
	log.Fatal(srv.Run())
}
