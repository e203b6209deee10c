package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/EddyProjects/eddy/feedapi"
	"github.com/EddyProjects/eddy/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	confPath = flag.String("config", "./config.toml", "Config path")
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not load .env file", slog.Any("err", err))
	}
	flag.Parse()

	if err := config.Load(*confPath); err != nil {
		slog.Error("Could not load config", slog.Any("err", err))
		os.Exit(1)
	}

	if err := Eddy(); err != nil {
		slog.Error("Error running server", slog.Any("err", err))
		os.Exit(1)
	}
}

func Eddy() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.C.Common.LogDir != "" {
		if err := os.MkdirAll(config.C.Common.LogDir, 0755); err != nil {
			return fmt.Errorf("could not create log dir: %w", err)
		}
		slog.SetDefault(slog.New(eddy.GetSlogHandler(
			config.C.Common.Debug,
			eddy.GetRotatingLogWriter(config.C.Common.LogDir, "eddy.log"),
		)))
	} else {
		slog.SetDefault(slog.New(eddy.GetSlogHandler(config.C.Common.Debug, os.Stderr)))
	}

	slog.InfoContext(ctx, "Starting eddy", slog.String("version", eddy.Version))

	base, err := feedapi.InitializeBaseAPI(ctx)
	if err != nil {
		return err
	}
	defer base.Close()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(20 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    config.C.Common.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "Server error", slog.Any("err", err))
			cancel()
		}
	}()
	slog.InfoContext(ctx, "Listening", slog.String("addr", config.C.Common.ListenAddr))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "Shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	return server.Shutdown(shutCtx)
}
