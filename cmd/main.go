package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-server/handler"
	"chat-server/repositories"
	"chat-server/runtime"
	"chat-server/runtime/workers"
	"chat-server/services"
	"chat-server/socket"
	"chat-server/storage"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/rs/cors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & File Storage
	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)
	messageLog := repositories.NewMessageLog(db, log)
	// Sequences must be released before the database closes.
	defer messageLog.Close()

	avatars, err := storage.NewDiskStorage(config.UploadDir, storage.Constraints{
		Extensions: config.ExtensionList(),
		MaxSizeKB:  config.MaxAvatarKB,
	}, log)
	if err != nil {
		return fmt.Errorf("upload directory setup failed: %w", err)
	}

	// 4. Supervision: event router + telemetry run under the supervisor.
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, config.BufferSize, config.SinkTimeout)
	telemetry := workers.NewTelemetryWorker(log, config.MetricInterval, registry.Count)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(router, telemetry)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 6. Services & HTTP Server Setup
	chatService := services.NewChatService(log, roomRepository, messageLog,
		userRepository, avatars, registry, router, config.MessagesToLoad)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)

	socketHandler := socket.NewHandler(log, chatService, registry,
		config.ConnectionBufferSize, config.MaxFrameSize())
	httpHandler := handler.New(log, authService)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: cors.New(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(httpHandler.SetupRouter(socketHandler, config.UploadDir)),
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
