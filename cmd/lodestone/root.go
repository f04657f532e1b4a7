package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quillforge/lodestone"
)

var (
	flagConfig   string
	flagVault    string
	flagDB       string
	flagLogLevel string
	flagLogJSON  bool

	// cfg is the effective configuration, built in PersistentPreRunE
	// before any subcommand runs.
	cfg lodestone.Config
)

var rootCmd = &cobra.Command{
	Use:   "lodestone",
	Short: "Local-first hybrid search over a directory of notes",
	Long: `Lodestone indexes a directory of markdown notes (and PDF, DOCX,
XLSX, and other documents) into a single SQLite file and answers hybrid
queries over it: a fulltext lane, a vector lane, and a metadata lane fused
by reciprocal rank fusion, with usage and link-graph boosts on top.

Everything runs locally. Embeddings are optional and off by default; point
the embedding provider at an Ollama or OpenAI-compatible endpoint to enable
the vector lane.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		var err error
		cfg, err = loadConfig()
		return err
	},
}

func execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "vault directory to index (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "log as JSON instead of text")
}

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(flagLogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if flagLogJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// loadConfig builds the effective configuration. Precedence, lowest to
// highest: built-in defaults, the TOML config file, environment variables,
// command-line flags.
func loadConfig() (lodestone.Config, error) {
	loadDotEnv()

	cfg := lodestone.DefaultConfig()

	if path := configPath(); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("loading config %s: %w", path, err)
		}
		slog.Debug("config file loaded", "path", path)
	}

	mergeEnv(&cfg)

	if flagVault != "" {
		cfg.Vault = flagVault
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	return cfg, nil
}

// loadDotEnv reads .env and .env.local from the working directory into the
// process environment. Variables already set in the real environment win.
func loadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); !exists {
				os.Setenv(k, v)
			}
		}
	}
}

// configPath picks the config file to load. An explicit --config is
// authoritative even if the file is missing, so typos fail loudly.
// Otherwise the first of ./lodestone.toml and the per-user config that
// exists is used, and none existing is fine.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	candidates := []string{"lodestone.toml"}
	if base, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(base, "lodestone", "config.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func mergeEnv(cfg *lodestone.Config) {
	if v := os.Getenv("LODESTONE_VAULT"); v != "" {
		cfg.Vault = v
	}
	if v := os.Getenv("LODESTONE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LODESTONE_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("LODESTONE_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LODESTONE_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("LODESTONE_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LODESTONE_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingDim = n
		}
	}
	if v := os.Getenv("LODESTONE_RERANK_PROVIDER"); v != "" {
		cfg.Rerank.Provider = v
	}
	if v := os.Getenv("LODESTONE_RERANK_MODEL"); v != "" {
		cfg.Rerank.Model = v
	}
	if v := os.Getenv("LODESTONE_RERANK_BASE_URL"); v != "" {
		cfg.Rerank.BaseURL = v
	}
	if v := os.Getenv("LODESTONE_RERANK_API_KEY"); v != "" {
		cfg.Rerank.APIKey = v
	}

	// The conventional provider key fills the gap when nothing
	// lodestone-specific is set.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
		if cfg.Rerank.Provider == "openai" && cfg.Rerank.APIKey == "" {
			cfg.Rerank.APIKey = key
		}
	}
}

func newEngine() (lodestone.Engine, error) {
	eng, err := lodestone.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	return eng, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
