package main

import (
	"os"
	"os/signal"
	"syscall"

	"resonance/internal/bootstrap"
)

func main() {
	container := bootstrap.NewContainer()
	container.MustInit()

	if err := container.Start(); err != nil {
		container.Log.Fatalf("Failed to start: %v", err)
	}

	// Wait for shutdown signal or fatal internal error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		container.Log.Infof("Received signal %s, shutting down...", sig)
	case <-container.Context.Done():
		container.Log.Info("Internal shutdown requested...")
	}

	container.Shutdown()
}
