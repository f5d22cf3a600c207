// Package config loads the companion brain configuration from config.toml,
// environment variables and an optional .env file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rcliao/companion-brain/internal/model"
)

// EnvPrefix is prepended to every environment override, e.g.
// COMPANION_STORAGE_SQLITE_PATH.
const EnvPrefix = "COMPANION"

// Config is the persistent configuration stored as config.toml.
type Config struct {
	Storage   StorageConfig   `toml:"storage" mapstructure:"storage"`
	Memory    MemoryConfig    `toml:"memory" mapstructure:"memory"`
	Embedding EmbeddingConfig `toml:"embedding" mapstructure:"embedding"`
	LLM       LLMConfig       `toml:"llm" mapstructure:"llm"`
	TTS       TTSConfig       `toml:"tts" mapstructure:"tts"`
	Robot     RobotConfig     `toml:"robot" mapstructure:"robot"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
}

// StorageConfig holds durable storage settings.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path" mapstructure:"sqlite_path"`
	DataDir    string `toml:"data_dir" mapstructure:"data_dir"`
}

// MemoryConfig holds memory subsystem limits.
type MemoryConfig struct {
	ContextWindow     int `toml:"context_window" mapstructure:"context_window"`
	SemanticScanLimit int `toml:"semantic_scan_limit" mapstructure:"semantic_scan_limit"`
	VectorDimension   int `toml:"vector_dimension" mapstructure:"vector_dimension"`
	HistoryMaxRecords int `toml:"history_max_records" mapstructure:"history_max_records"`
	HistoryCharBudget int `toml:"history_char_budget" mapstructure:"history_char_budget"`
	DefaultTopK       int `toml:"default_top_k" mapstructure:"default_top_k"`
}

// EmbeddingConfig selects the embedding provider. An empty provider runs
// the hash fallback only.
type EmbeddingConfig struct {
	Provider string        `toml:"provider" mapstructure:"provider"`
	Target   string        `toml:"target" mapstructure:"target"`
	Model    string        `toml:"model" mapstructure:"model"`
	APIKey   string        `toml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL        string        `toml:"base_url" mapstructure:"base_url"`
	APIKey         string        `toml:"api_key,omitempty" mapstructure:"api_key"`
	Model          string        `toml:"model" mapstructure:"model"`
	Temperature    float64       `toml:"temperature" mapstructure:"temperature"`
	Timeout        time.Duration `toml:"timeout" mapstructure:"timeout"`
	RequestsPerSec float64       `toml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxRetries     int           `toml:"max_retries" mapstructure:"max_retries"`
}

// TTSConfig configures the speech synthesis endpoint. An empty URL
// disables audio.
type TTSConfig struct {
	URL      string        `toml:"url" mapstructure:"url"`
	Voice    string        `toml:"voice" mapstructure:"voice"`
	AudioDir string        `toml:"audio_dir" mapstructure:"audio_dir"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// RobotConfig holds robot identity settings.
type RobotConfig struct {
	AllowedIDs   []string `toml:"allowed_ids" mapstructure:"allowed_ids"`
	DefaultID    string   `toml:"default_id" mapstructure:"default_id"`
	Capabilities []string `toml:"capabilities" mapstructure:"capabilities"`
	// Stage pins the growth stage. Empty evaluates it from interaction data.
	Stage string `toml:"stage,omitempty" mapstructure:"stage"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Debug  bool `toml:"debug" mapstructure:"debug"`
	JSON   bool `toml:"json" mapstructure:"json"`
	Pretty bool `toml:"pretty" mapstructure:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".companion-brain")
	return &Config{
		Storage: StorageConfig{
			SQLitePath: filepath.Join(dataDir, "memory.db"),
			DataDir:    dataDir,
		},
		Memory: MemoryConfig{
			ContextWindow:     10,
			SemanticScanLimit: 100,
			VectorDimension:   384,
			HistoryMaxRecords: 50,
			HistoryCharBudget: 2000,
			DefaultTopK:       5,
		},
		Embedding: EmbeddingConfig{
			Provider: "",
			Target:   "http://localhost:11434",
			Model:    "all-minilm",
			Timeout:  10 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			Temperature:    0.3,
			Timeout:        30 * time.Second,
			RequestsPerSec: 2,
			MaxRetries:     1,
		},
		TTS: TTSConfig{
			Voice:    "default",
			AudioDir: filepath.Join(dataDir, "audio"),
			Timeout:  20 * time.Second,
		},
		Robot: RobotConfig{
			AllowedIDs:   []string{"robotA", "robotB"},
			DefaultID:    "robotA",
			Capabilities: []string{"voice conversation", "touch sensing", "emotional expression", "body movement", "memory of past interactions"},
		},
		Log: LogConfig{Pretty: true},
	}
}

// Load reads configPath (or config.toml in the data dir when empty), applies
// COMPANION_* environment overrides and returns the merged configuration.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v, err := InitViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitViper creates a viper instance with defaults, the config file and
// environment bindings.
func InitViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v, Default())

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Default().Storage.DataDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)

	v.SetDefault("memory.context_window", d.Memory.ContextWindow)
	v.SetDefault("memory.semantic_scan_limit", d.Memory.SemanticScanLimit)
	v.SetDefault("memory.vector_dimension", d.Memory.VectorDimension)
	v.SetDefault("memory.history_max_records", d.Memory.HistoryMaxRecords)
	v.SetDefault("memory.history_char_budget", d.Memory.HistoryCharBudget)
	v.SetDefault("memory.default_top_k", d.Memory.DefaultTopK)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)

	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.requests_per_sec", d.LLM.RequestsPerSec)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	v.SetDefault("tts.url", d.TTS.URL)
	v.SetDefault("tts.voice", d.TTS.Voice)
	v.SetDefault("tts.audio_dir", d.TTS.AudioDir)
	v.SetDefault("tts.timeout", d.TTS.Timeout)

	v.SetDefault("robot.allowed_ids", d.Robot.AllowedIDs)
	v.SetDefault("robot.default_id", d.Robot.DefaultID)
	v.SetDefault("robot.capabilities", d.Robot.Capabilities)
	v.SetDefault("robot.stage", d.Robot.Stage)

	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Validate checks limits that the memory subsystem depends on.
func (c *Config) Validate() error {
	switch {
	case c.Memory.ContextWindow <= 0:
		return fmt.Errorf("memory.context_window must be positive, got %d", c.Memory.ContextWindow)
	case c.Memory.VectorDimension <= 0:
		return fmt.Errorf("memory.vector_dimension must be positive, got %d", c.Memory.VectorDimension)
	case c.Memory.SemanticScanLimit <= 0:
		return fmt.Errorf("memory.semantic_scan_limit must be positive, got %d", c.Memory.SemanticScanLimit)
	case c.Memory.DefaultTopK <= 0:
		return fmt.Errorf("memory.default_top_k must be positive, got %d", c.Memory.DefaultTopK)
	case c.Storage.SQLitePath == "":
		return errors.New("storage.sqlite_path is required")
	case c.Robot.Stage != "" && !model.ValidStage(c.Robot.Stage):
		return fmt.Errorf("robot.stage %q is not a growth stage", c.Robot.Stage)
	}
	return nil
}

// RobotAllowed reports whether id is in the robot whitelist. An empty
// whitelist allows every id.
func (c *Config) RobotAllowed(id string) bool {
	if len(c.Robot.AllowedIDs) == 0 {
		return id != ""
	}
	return slices.Contains(c.Robot.AllowedIDs, id)
}

// Write encodes cfg as TOML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot write nil config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Encode writes cfg as TOML to w.
func Encode(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
