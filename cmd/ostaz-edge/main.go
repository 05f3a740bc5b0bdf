// Command ostaz-edge runs the offline cache gateway for the Ostaz Market
// storefront: it intercepts retrieval requests, serves them through cache
// strategies, queues offline orders and replays them when connectivity
// returns.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/Abdallaheslam/ostaz-edge/internal/api"
	"github.com/Abdallaheslam/ostaz-edge/internal/conf"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore"
	"github.com/Abdallaheslam/ostaz-edge/internal/datastore/repository"
	"github.com/Abdallaheslam/ostaz-edge/internal/logger"
	"github.com/Abdallaheslam/ostaz-edge/internal/notification"
	"github.com/Abdallaheslam/ostaz-edge/internal/offline"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	var listen string

	root := &cobra.Command{
		Use:   "ostaz-edge",
		Short: "Offline cache gateway for the Ostaz Market storefront",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				settings.Listen = listen
			}
			return run(settings)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(settings *conf.Settings) error {
	log := logger.NewSlogLogger(os.Stdout, logger.LogLevelInfo, nil)

	db, err := datastore.Open(settings.Database.Path)
	if err != nil {
		return err
	}

	notification.Initialize(&notification.ServiceConfig{
		BufferSize: settings.Notification.BufferSize,
	})

	fetcher, err := offline.NewHTTPFetcher(&http.Client{Timeout: 60 * time.Second}, settings.Upstream)
	if err != nil {
		return err
	}

	cacheRepo := repository.NewResponseCacheRepository(db)
	orderRepo := repository.NewOrderQueueRepository(db)

	notifier := offline.NewServiceNotifier()
	engine := offline.NewEngine(cacheRepo, fetcher, settings, log)
	queue := offline.NewOrderQueue(orderRepo, &http.Client{}, &settings.Orders, notifier, log)
	events := api.NewEventStream()

	ctrl := offline.NewController(offline.ControllerConfig{
		Settings:   settings,
		Cache:      cacheRepo,
		Engine:     engine,
		Queue:      queue,
		Classifier: offline.NewClassifier(&settings.Routing),
		Fetch:      fetcher,
		Notifier:   notifier,
		Sink:       events,
		Log:        log,
	})

	startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := ctrl.Install(startCtx); err != nil {
		// The gateway still serves network-first traffic without a
		// precached shell; installation retries on the next start.
		log.Error("install failed, continuing without precache", logger.Error(err))
	} else if err := ctrl.Activate(startCtx); err != nil {
		return err
	}
	ctrl.StartPeriodicSync()
	defer ctrl.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.NewController(e, ctrl, fetcher, events, log)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(settings.Listen); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Info("gateway started",
		logger.String("listen", settings.Listen),
		logger.String("version", settings.Version))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", logger.String("signal", sig.String()))
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return e.Shutdown(ctx)
}
