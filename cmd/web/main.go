package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scimas/badam-sat/auth"
	"github.com/scimas/badam-sat/lobby"
	"github.com/scimas/badam-sat/room"
	"github.com/scimas/badam-sat/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := server.ConfigFromEnv()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}
	key, err := cfg.Key()
	if err != nil {
		logger.Fatal("could not prepare signing key", zap.Error(err))
	}

	signer := auth.NewSigner(key, cfg.TokenTTL)
	lob := lobby.New(cfg.MaxRooms, room.Opts{
		FreeOpening: cfg.FreeOpening,
		IdleTimeout: cfg.RoomTimeout,
	})

	go sweepRooms(lob, cfg.SweepInterval, logger)

	srv := server.NewServer(lob, signer, logger)
	logger.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.Int("max_rooms", cfg.MaxRooms),
		zap.Duration("room_timeout", cfg.RoomTimeout),
	)
	logger.Fatal("server exited", zap.Error(http.ListenAndServe(cfg.Addr, srv)))
}

// sweepRooms periodically prunes rooms whose actor has exited.
func sweepRooms(lob *lobby.Lobby, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if removed := lob.Sweep(); removed > 0 {
			logger.Info("swept dead rooms", zap.Int("removed", removed))
		}
	}
}
