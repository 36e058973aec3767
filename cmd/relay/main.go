package main

import (
	"chat-relay/adapters"
	"chat-relay/aggregator"
	"chat-relay/infrastructure/api"
	"chat-relay/infrastructure/telegram"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so that deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(log, config.BlugeFilepath)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Delivery pipeline
	messageRepository := repositories.NewMessageRepository(db, log)
	allowlistRepository := repositories.NewAllowlistRepository(db)
	client := telegram.NewClient(log, config.TelegramBotToken, config.TelegramChatID, config.DeliveryTimeout)
	publisher := services.NewPublisher(log, messageRepository, client, config.StalenessBound, config.BotName)
	agg := aggregator.New(log, publisher, config.CooldownWindow)
	defer agg.Stop()

	// 4. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	monitoring := observability.NewMonitoringManager()
	orchestrator := runtime.NewOrchestrator(
		log, sup, agg, messageRepository, index, monitoring,
		config.BufferSize, config.HealthInterval,
	)
	orchestrator.Add(
		sink.NewDiskSink(messageRepository, log),
		sink.NewSearchSink(index, log),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 7. HTTP Server Setup
	handler := api.NewHandler(log, orchestrator,
		adapters.NewVoiceAdapter(log), adapters.NewPresenceAdapter(log), allowlistRepository)
	server := api.NewServer(log, handler, api.Config{
		Addr:  fmt.Sprintf("%s:%d", config.Host, config.Port),
		Token: config.RelayToken,
	})

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "at", time.Now().UTC())
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", "error", err)
	}
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
