package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat-rooms/domain/event"
	"chat-rooms/infrastructure/httpapi"
	"chat-rooms/internal"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"
	"chat-rooms/sink"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
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

	policy, err := workers.ParseDeliveryPolicy(config.DeliveryPolicy)
	if err != nil {
		return err
	}

	// 2. Storage (BadgerDB for the room logs, Bluge for full text search)
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

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	postRepository := repositories.NewPostRepository(db, log)
	searchIndex := repositories.NewSearchIndex(indexWriter, log)
	stats := observability.NewStats()

	// 3. Moderation (optional)
	var moderator *moderation.Moderator
	if config.ModerationEnabled {
		mask, err := CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		data, err := runtime.LoadCensoredWords()
		if err != nil {
			return fmt.Errorf("censored words loading failed: %w", err)
		}
		log.Info(fmt.Sprintf("Moderating %d words across %d languages [%s]",
			len(data.Words), len(data.Languages), strings.Join(data.Languages, ",")))
		m, err := moderation.NewModerator(data.Words, mask)
		if err != nil {
			return fmt.Errorf("moderator creation failed: %w", err)
		}
		moderator = &m
	}

	// 4. Supervision & Room Directory
	events := make(chan event.DomainEvent, config.BufferSize)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewEventFanout(log, events, config.SinkTimeout,
			sink.NewSearchSink(searchIndex, log),
			sink.NewStatsSink(stats),
		),
		workers.NewTelemetryWorker(log, stats, config.MetricInterval),
	)

	directory := runtime.NewDirectory(log, sup, postRepository, moderator,
		events, stats, policy, config.RecentLimit, config.MailboxSize)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	directory.Start(ctx)
	go sup.Run(ctx)

	if config.DebugPort > 0 {
		internal.StartInspectServer(db, config.DebugPort, stats.Snapshot)
	}

	// 6. HTTP Server Setup
	api := httpapi.NewServer(log, directory, searchIndex, config.RecentLimit, config.ConnectionBufferSize)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: api.Routes()}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
