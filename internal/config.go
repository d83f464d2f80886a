package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=5000"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	OutboxSize        int           `env:"OUTBOX_SIZE,default=64"`
	MaxFrameSize      int           `env:"MAX_FRAME_SIZE,default=65536"`
	MaxUsernameLength int           `env:"MAX_USERNAME_LENGTH,default=32"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL,default=30s"`
	HealthPort        int           `env:"HEALTH_PORT,default=0"`
	CensoredWordsFile string        `env:"CENSORED_WORDS_FILE"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects values the relay cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("PORT must be between 0 and 65535, got %d", c.Port)
	case c.HealthPort < 0 || c.HealthPort > 65535:
		return fmt.Errorf("HEALTH_PORT must be between 0 and 65535, got %d", c.HealthPort)
	case c.OutboxSize <= 0:
		return fmt.Errorf("OUTBOX_SIZE must be positive, got %d", c.OutboxSize)
	case c.MaxFrameSize <= 0:
		return fmt.Errorf("MAX_FRAME_SIZE must be positive, got %d", c.MaxFrameSize)
	case c.MaxUsernameLength <= 0:
		return fmt.Errorf("MAX_USERNAME_LENGTH must be positive, got %d", c.MaxUsernameLength)
	case c.WriteTimeout <= 0 || c.HandshakeTimeout <= 0 || c.ShutdownTimeout <= 0:
		return fmt.Errorf("WRITE_TIMEOUT, HANDSHAKE_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	case c.StatsInterval < 0:
		return fmt.Errorf("STATS_INTERVAL cannot be negative, got %s", c.StatsInterval)
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
