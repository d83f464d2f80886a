package main

import (
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/tcp"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until SIGINT/SIGTERM.
// Deferred cleanups run before main decides on the exit code.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Optional moderation
	censor, err := newCensor(log, config)
	if err != nil {
		return err
	}

	// 3. Supervision & Orchestration
	monitoring := observability.NewMonitoringManager()
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(log, sup, registry, monitoring)

	chatService := services.NewChatService(log, registry, orchestrator.Broadcaster(), censor, monitoring,
		services.Config{
			HandshakeTimeout:  config.HandshakeTimeout,
			MaxUsernameLength: config.MaxUsernameLength,
			Session: tcp.SessionConfig{
				WriteTimeout: config.WriteTimeout,
				OutboxSize:   config.OutboxSize,
				MaxFrameSize: config.MaxFrameSize,
			},
		})

	// 4. TCP listener, the only fatal failure
	address := config.Address()
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("%w: cannot listen on %s: %w", errors.ErrListenerFailure, address, err)
	}
	listener := tcp.NewListener(log, ln, chatService)
	orchestrator.Add(listener)

	// 5. Optional gRPC health endpoint and stats reporter
	var health *server.HealthServer
	if config.HealthPort > 0 {
		healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
		healthLn, err := net.Listen("tcp", healthAddress)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("%w: cannot listen on %s: %w", errors.ErrListenerFailure, healthAddress, err)
		}
		health = server.NewHealthServer(log, healthLn)
		orchestrator.Add(health)
	}
	if config.StatsInterval > 0 {
		orchestrator.Add(workers.NewReporterWorker(log, monitoring, registry, config.StatsInterval))
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := orchestrator.Start(ctx); err != nil {
			log.Error("Orchestrator stopped with error", "error", err)
		}
	}()
	log.Info("Chat relay started", "address", listener.Addr().String())

	// 7. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 8. Final Cleanup
	if health != nil {
		health.SetServing(false)
	}
	notified := orchestrator.DisconnectAll(services.ReasonShuttingDown)
	if !listener.Wait(config.ShutdownTimeout) {
		log.Warn("Some connections did not finish in time", "timeout", config.ShutdownTimeout)
	}
	orchestrator.Stop()
	<-done
	log.Info("Program stopped cleanly", "notified", notified)

	return nil
}

func newCensor(log *slog.Logger, config internal.Config) (services.Censor, error) {
	if config.CensoredWordsFile == "" {
		return nil, nil
	}
	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	data, err := moderation.LoadPath(config.CensoredWordsFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(data.Words, char, log)
	if err != nil {
		return nil, fmt.Errorf("cannot build moderator: %w", err)
	}
	log.Info("Moderation enabled", "words", len(data.Words), "files", len(data.Files))
	return moderator, nil
}
