package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"presence-backend/config"
	"presence-backend/internal/api"
	"presence-backend/internal/db"
	"presence-backend/internal/ledger"
	"presence-backend/internal/notify"
	"presence-backend/internal/store"
	"presence-backend/internal/validate"
)

func main() {
	logger := log.New(os.Stdout, "presenced ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	replayLedger := ledger.NewCacheLedger(cfg.Protocol.ReplayRetention)
	directory := validate.NewDirectory(appStore, cfg.Protocol.ReplayRetention)
	validator := validate.New(validate.Options{
		SlotDuration:    cfg.Protocol.SlotDuration,
		SlotTolerance:   uint32(cfg.Protocol.SlotTolerance),
		ClockSkewBudget: cfg.Protocol.ClockSkewBudget,
	}, appStore, directory, replayLedger, appStore, nil)
	logger.Printf("validator ready: slot=%s tolerance=%d skew=%s retention=%s",
		cfg.Protocol.SlotDuration, cfg.Protocol.SlotTolerance, cfg.Protocol.ClockSkewBudget, cfg.Protocol.ReplayRetention)

	var alerts *notify.WorkerPool
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		alerts = notify.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
		alerts.Start(ctx)
		logger.Printf("alert worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; operator alerts disabled")
	}

	router := api.NewRouter(cfg, appStore, validator, alerts, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
