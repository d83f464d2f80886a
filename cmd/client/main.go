package main

import (
	"bufio"
	"chat-relay/client"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	Host     string `env:"CHAT_HOST,default=localhost"`
	Port     int    `env:"CHAT_PORT,default=5000"`
	Username string `env:"CHAT_USERNAME,required=true"`
	LogLevel string `env:"LOG_LEVEL,default=WARN"`
	Colours  bool   `env:"CHAT_COLOURS,default=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the relay and forwards stdin lines until /quit, EOF or Ctrl+C.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Join the room.
	view := NewView(os.Stdout, config.Colours)
	c, err := client.Connect(ctx, config.Host, config.Port, config.Username, view.Show,
		client.WithLogger(log))
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = c.Disconnect() }()
	view.Info(fmt.Sprintf("Connected to %s:%d as %s. /who lists users, /quit leaves.",
		config.Host, config.Port, config.Username))

	// 4. Read stdin on its own goroutine so that a server DISCONNECT ends the program too.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-c.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			switch cmd := strings.TrimSpace(line); cmd {
			case "":
			case "/quit":
				return exitOK, nil
			case "/who":
				view.Users()
			default:
				if err := c.SendText(line); err != nil {
					return exitRuntime, err
				}
			}
		}
	}
}
