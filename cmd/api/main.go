package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filing-backend/internal/bootstrap"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/server"
	"filing-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.RoleAPI)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Filing.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
