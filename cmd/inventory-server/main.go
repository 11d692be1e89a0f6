// Package main boots the inventory API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/inventory-manager/internal/cache"
	"github.com/fairyhunter13/inventory-manager/internal/config"
	"github.com/fairyhunter13/inventory-manager/internal/events"
	httpapi "github.com/fairyhunter13/inventory-manager/internal/http"
	"github.com/fairyhunter13/inventory-manager/internal/obs"
	"github.com/fairyhunter13/inventory-manager/internal/queue"
	"github.com/fairyhunter13/inventory-manager/internal/store"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		obs.Logger.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting", "store_driver", cfg.StoreDriver, "envelope", cfg.ResponseEnvelope)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		obs.Logger.Error("store_open_failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	lists := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pub := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)

	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, pub)
	mgr.Start(ctx)

	app, err := httpapi.NewApp(cfg, st, lists, mgr)
	if err != nil {
		obs.Logger.Error("app_init_failed", "error", err)
		os.Exit(1)
	}
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", mgr.BacklogSize(), "worker_count", mgr.WorkerCount())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	mgr.Stop()
	for name, c := range map[string]interface{ Close() error }{"store": st, "cache": lists, "publisher": pub} {
		if err := c.Close(); err != nil {
			obs.Logger.Warn("close_failed", "component", name, "error", err)
		}
	}
	obs.Logger.Info("service_stopped")
}
