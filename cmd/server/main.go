package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/seekwell/seekwell-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server failed", "error", err)
		}
	case sig := <-sigCh:
		a.Log.Info("shutting down", "signal", sig.String())
		if err := a.Server.Shutdown(context.Background()); err != nil {
			a.Log.Error("shutdown failed", "error", err)
		}
	}
}
