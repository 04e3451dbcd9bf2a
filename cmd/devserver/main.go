package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelichko/clip-keeper/internal/config"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/server"
)

func main() {
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting configs: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("devserver")

	if err = cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid server configuration")
	}

	dataDir := cfg.Server.DataDir
	if dataDir == "" {
		dataDir = "devserver-data"
	}
	if err = os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data directory")
	}

	if cfg.Server.TokenSignKey == "" {
		log.Warn().Msg("no token sign key configured, authentication disabled")
	} else {
		token, tokenErr := server.IssueToken(cfg.Server.TokenSignKey, "dev", 24*time.Hour, time.Now())
		if tokenErr != nil {
			log.Fatal().Err(tokenErr).Msg("issue development token")
		}
		log.Info().Str("token", token).Msg("development token for client REMOTE_TOKEN")
	}

	handler := server.NewHandler(dataDir, cfg.Server.TokenSignKey, log)
	srv := server.NewServer(cfg.Server.HTTPAddress, handler.Init(), cfg.Server.RequestTimeout, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err = srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server run error")
	}
}
