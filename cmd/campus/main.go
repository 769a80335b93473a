package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/campus-client/internal/api"
	"github.com/nhle/campus-client/internal/app"
	"github.com/nhle/campus-client/internal/credential"
	"github.com/nhle/campus-client/internal/model"
	"github.com/nhle/campus-client/internal/push"
	"github.com/nhle/campus-client/internal/session"
	"github.com/nhle/campus-client/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "campus: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}

	logger := newLogger()
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	history, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer history.Close()

	creds := credential.NewStore(cfg.Storage.KeyringDir)
	sess := session.New(cfg.Server.BaseURL, creds,
		session.WithLogger(logger),
		session.WithClientOptions(api.WithTimeout(cfg.Server.RequestTimeout())),
	)

	channel := push.New(cfg.Server.BaseURL, sess, push.Config{
		Capacity:      cfg.Push.Capacity,
		ToastDuration: time.Duration(cfg.Push.ToastSeconds) * time.Second,
		Backoff: push.BackoffConfig{
			Initial:    time.Duration(cfg.Push.BackoffInitialSec) * time.Second,
			Max:        time.Duration(cfg.Push.BackoffMaxSec) * time.Second,
			Multiplier: cfg.Push.BackoffMultiplier,
			Jitter:     true,
		},
	}, push.WithHistory(history), push.WithLogger(logger))
	defer channel.Close()

	program := tea.NewProgram(
		app.New(sess, channel, history),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}

	return nil
}

// newLogger writes structured logs to a file next to the data
// directory; stdout belongs to the TUI.
func newLogger() *zap.Logger {
	home, err := os.UserHomeDir()
	if err != nil {
		return zap.NewNop()
	}

	logPath := filepath.Join(home, ".local", "share", "campus", "campus.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zap.NewNop()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
