package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"constructlink/app"
	"constructlink/config"
	"constructlink/routes"
)

func main() {
	cfg := config.Load()
	application := app.MustNew(cfg)

	routes.RegisterRoutes(application)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.Handler(application),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		application.Logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			application.Logger.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		application.Logger.Error().Err(err).Msg("shutdown")
	}
	application.Close(ctx)
}
