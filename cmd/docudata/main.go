package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hazyhaar/docudata/pkg/export"
	"github.com/hazyhaar/docudata/pkg/library"
	"github.com/hazyhaar/docudata/pkg/session"
)

var version = "dev"

// config is the merged view of defaults, the config file, DOCUDATA_*
// environment variables and flags, in increasing precedence.
type config struct {
	Addr          string        `mapstructure:"addr"`
	LibraryDir    string        `mapstructure:"library_dir"`
	HistoryDB     string        `mapstructure:"history_db"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TLS           tlsConfig     `mapstructure:"tls"`
	Log           logConfig     `mapstructure:"log"`
}

type tlsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cert    string `mapstructure:"cert"`
	Key     string `mapstructure:"key"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys binds config keys to the flags that override them. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"addr":           "addr",
	"library_dir":    "library",
	"history_db":     "history",
	"session_ttl":    "session-ttl",
	"sweep_interval": "sweep-interval",
	"tls.enabled":    "tls",
	"tls.cert":       "tls-cert",
	"tls.key":        "tls-key",
	"log.level":      "log-level",
	"log.format":     "log-format",
}

var (
	cfg        *config
	logger     *slog.Logger
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "docudata",
	Short: "Query building component data and code requirements in plain language",
	Long: "docudata loads building component datasets (JSON, YAML, IFC exports) and code\n" +
		"requirement sets, interprets queries such as \"walls greater than 3m height in\n" +
		"California\", and ranks matching records. It runs as a CLI, an HTTP API or an\n" +
		"MCP server.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(flagConfig, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		l, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ./docudata.yaml when present)")
	pf.String("library", "", "dataset library directory")
	pf.String("history", "", "SQLite file recording searches (disabled when empty)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
}

// loadConfig reads configuration the way the rest of the stack expects:
// defaults, then the YAML file, then DOCUDATA_* variables, then flags.
func loadConfig(path string, flags *pflag.FlagSet) (*config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docudata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DOCUDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8420")
	v.SetDefault("library_dir", "library")
	v.SetDefault("history_db", "")
	v.SetDefault("session_ttl", "30m")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert", "")
	v.SetDefault("tls.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return nil, fmt.Errorf("session_ttl and sweep_interval must be positive")
	}
	return &c, nil
}

func newLogger(lc logConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", lc.Format)
}

// openLibrary loads the built-in datasets and the configured directory.
func openLibrary() (*library.Registry, error) {
	lib := library.NewRegistry(cfg.LibraryDir, logger)
	if err := lib.Load(); err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	logger.Debug("library loaded", "dir", cfg.LibraryDir, "datasets", lib.Count())
	return lib, nil
}

// openStore builds the session store shared by every command. The returned
// closer releases the history database, if one is configured.
func openStore() (*session.Store, *library.Registry, func(), error) {
	lib, err := openLibrary()
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() {}
	var hist *export.History
	if cfg.HistoryDB != "" {
		hist, err = export.OpenHistory(cfg.HistoryDB)
		if err != nil {
			return nil, nil, nil, err
		}
		closer = func() {
			if err := hist.Close(); err != nil {
				logger.Warn("close history", "error", err)
			}
		}
	}
	store := session.NewStore(session.Config{Library: lib, History: hist, Logger: logger})
	return store, lib, closer, nil
}
