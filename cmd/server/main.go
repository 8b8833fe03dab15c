// Command server runs the SnapText HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/snaptext/snaptext/internal/config"
	"github.com/snaptext/snaptext/internal/job"
	"github.com/snaptext/snaptext/internal/log"
	"github.com/snaptext/snaptext/internal/recognize"
	"github.com/snaptext/snaptext/internal/runner"
	"github.com/snaptext/snaptext/internal/server"
	"github.com/snaptext/snaptext/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.InitLog(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	tokens := token.NewCache(cfg.MaxValidTokens, cfg.TokenTTL)
	jobs := job.NewStore()
	engine := recognize.Default(cfg.OCRLanguages...)
	run := runner.New(jobs, engine, cfg.Workers)

	srv, err := server.New(cfg, tokens, jobs, run)
	if err != nil {
		zap.S().Fatalf("init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		zap.S().Fatalf("server stopped: %v", err)
	}
}
