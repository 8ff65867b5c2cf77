package server

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the server's environment-driven configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"BADAM_SAT_ADDR,default=:8000"`
	// MaxRooms caps the number of simultaneous rooms.
	MaxRooms int `env:"BADAM_SAT_MAX_ROOMS,default=64"`
	// RoomTimeout is the idle window after which a room is evicted.
	RoomTimeout time.Duration `env:"BADAM_SAT_ROOM_TIMEOUT,default=5m"`
	// SweepInterval is how often dead rooms are pruned from the lobby.
	SweepInterval time.Duration `env:"BADAM_SAT_SWEEP_INTERVAL,default=2m"`
	// SigningKey is the HMAC key for player tokens; a random key is
	// generated when empty, which invalidates tokens across restarts.
	SigningKey string `env:"BADAM_SAT_SIGNING_KEY"`
	// TokenTTL is the player token lifetime.
	TokenTTL time.Duration `env:"BADAM_SAT_TOKEN_TTL,default=24h"`
	// FreeOpening lifts the seven-of-hearts opening rule in every room.
	FreeOpening bool `env:"BADAM_SAT_FREE_OPENING,default=false"`
}

// ConfigFromEnv decodes the configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config from environment: %w", err)
	}
	return cfg, nil
}

// Key returns the configured signing key, generating a random one when unset.
func (c Config) Key() ([]byte, error) {
	if c.SigningKey != "" {
		return []byte(c.SigningKey), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return key, nil
}
