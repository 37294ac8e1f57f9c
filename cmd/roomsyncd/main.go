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

	"roomstatus-backend/config"
	"roomstatus-backend/internal/api"
	"roomstatus-backend/internal/db"
	"roomstatus-backend/internal/history"
	"roomstatus-backend/internal/notification"
	"roomstatus-backend/internal/persist"
	"roomstatus-backend/internal/remote"
	"roomstatus-backend/internal/store"
	syncengine "roomstatus-backend/internal/sync"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "roomsyncd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Rooms.Timezone)
	if err != nil {
		logger.Fatalf("invalid timezone %q: %v", cfg.Rooms.Timezone, err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local persistence, undo history and the room store
	blobStore := persist.NewGormStore(gormDB)
	undoLog := history.NewManager(ctx, blobStore)
	roomStore := store.New(store.Options{
		History:  undoLog,
		Persist:  blobStore,
		Ranges:   cfg.Rooms.Ranges(),
		Location: loc,
	})
	if err := roomStore.Load(ctx); err != nil {
		logger.Fatalf("failed to restore local state: %v", err)
	}
	logger.Println("room store restored")

	// Remote client and sync engine
	auth := &remote.StaticAuth{UserID: cfg.Remote.UserID, AuthToken: cfg.Remote.Token}
	client := remote.NewClient(&cfg.Remote, auth)
	engine := syncengine.NewEngine(roomStore, syncengine.NewTransport(client), auth, &cfg.Sync)
	roomStore.AttachSyncer(engine)

	go engine.Run(ctx)
	go roomStore.RunSweep(ctx, cfg.Rooms.SweepInterval)

	if err := engine.StartRealtimeSubscription(ctx); err != nil {
		logger.Printf("realtime subscription unavailable, relying on polling: %v", err)
	}

	// Web push notifications are optional; without VAPID keys the API
	// still runs, watchers just get nothing.
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		roomStore.Subscribe(pool)
		logger.Println("notification worker pool started")
	} else {
		logger.Println("VAPID keys not configured, web push disabled")
	}

	// Initialize router
	router := api.NewRouter(roomStore, engine, gormDB, webpushOptions, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	engine.StopRealtimeSubscription()
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
