// Package cli implements the companion-brain CLI commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-brain/internal/config"
	"github.com/rcliao/companion-brain/internal/dialogue"
	"github.com/rcliao/companion-brain/internal/embedding"
	"github.com/rcliao/companion-brain/internal/fusion"
	"github.com/rcliao/companion-brain/internal/llm"
	"github.com/rcliao/companion-brain/internal/logger"
	"github.com/rcliao/companion-brain/internal/persona"
	"github.com/rcliao/companion-brain/internal/store"
	"github.com/rcliao/companion-brain/internal/tts"
)

var (
	configPath string
	dbPath     string
	robotFlag  string
	debugFlag  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion-brain",
	Short: "Memory and prompt brain for a companion robot",
	Long:  "Layered memory, prompt fusion and dialogue for a companion robot. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.companion-brain/config.toml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides storage.sqlite_path)")
	RootCmd.PersistentFlags().StringVarP(&robotFlag, "robot", "r", "", "Robot id (default: robot.default_id)")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Debug logging")
}

// app is everything a command may need, opened from the config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	memory   *fusion.Memory
	intimacy *persona.IntimacyStore
	logFile  io.Closer
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// robot returns the robot id the command acts for.
func (a *app) robot() string {
	if robotFlag != "" {
		return robotFlag
	}
	return a.cfg.Robot.DefaultID
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.SQLitePath = dbPath
	}
	if debugFlag {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

// newLogger writes to stderr and, when the data dir is writable, mirrors
// records as JSON to brain.log.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	term := logger.New(
		logger.WithDebug(cfg.Log.Debug),
		logger.WithPretty(cfg.Log.Pretty),
		logger.WithJSON(cfg.Log.JSON),
	)
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return term, nil
	}
	f, err := os.OpenFile(filepath.Join(cfg.Storage.DataDir, "brain.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return term, nil
	}
	file := logger.New(logger.WithDebug(cfg.Log.Debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(term, file), f
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfg)
}

// newApp opens the stores for cfg. On failure everything opened so far,
// the log file included, is closed again.
func newApp(cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	a.logger, a.logFile = newLogger(cfg)
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = store.NewSQLiteStore(cfg.Storage.SQLitePath,
		store.WithVectorDimension(cfg.Memory.VectorDimension),
		store.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(cfg.Embedding, cfg.Memory.VectorDimension, a.logger)
	if err != nil {
		return nil, err
	}
	a.memory = fusion.NewMemory(a.store, emb, a.logger, fusion.Options{
		ContextWindow:     cfg.Memory.ContextWindow,
		SemanticScanLimit: cfg.Memory.SemanticScanLimit,
		HistoryMaxRecords: cfg.Memory.HistoryMaxRecords,
		HistoryCharBudget: cfg.Memory.HistoryCharBudget,
	})

	a.intimacy, err = persona.NewIntimacyStore(filepath.Join(cfg.Storage.DataDir, "intimacy"), a.logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// engine wires the dialogue engine with the configured model and speech
// services.
func (a *app) engine() (*dialogue.Engine, error) {
	synth, err := tts.New(a.cfg.TTS, a.logger)
	if err != nil {
		return nil, err
	}
	client := llm.NewOpenAI(a.cfg.LLM, a.logger)
	return dialogue.New(dialogue.ConfigFrom(a.cfg), a.memory, client, synth, a.intimacy, a.logger), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
