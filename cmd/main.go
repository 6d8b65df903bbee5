package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caia/concierge/internal/api/v1/handlers"
	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/internal/observability"
	"github.com/caia/concierge/internal/services"
	"github.com/caia/concierge/pkg/logger"
)

func main() {
	zerolog.SetGlobalLevel(logger.Zerolog())
	log.Logger = log.With().Str("app", "concierge").Logger()

	svc, err := services.InitializeServices()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	if err := run(svc); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func run(svc *services.Services) error {
	defer svc.Close()

	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           setupRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", config.GetLLMProvider()).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func setupRouter(svc *services.Services) *mux.Router {
	r := mux.NewRouter()
	r.Use(observability.MetricsMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	handlers.RegisterV1Routes(r, svc)
	return r
}
