// Package cli holds the flags and startup code shared by the commands
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semag-arcade/game-importer/pkg/config"
	"github.com/semag-arcade/game-importer/pkg/logging"
	"github.com/spf13/cobra"
)

// Options are the flags every command accepts
type Options struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Dev        bool
}

// AddFlags registers --config, --log-level, --log-format and --dev on cmd
func AddFlags(cmd *cobra.Command, o *Options) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.ConfigFile, "config", "", "YAML config file")
	flags.StringVar(&o.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&o.LogFormat, "log-format", "", "log format (pretty, json)")
	flags.BoolVar(&o.Dev, "dev", false, "start from the development defaults (debug logging, fewer workers)")
}

// Setup loads the config file, applies the logging flags and configures
// the global logger
func Setup(o *Options) (*config.Config, error) {
	load := config.Load
	if o.Dev {
		load = config.LoadDevelopment
	}
	cfg, err := load(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cfg.Logging == nil {
		cfg.Logging = logging.DefaultLogConfig()
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	return cfg, nil
}

// Context returns a context cancelled on SIGINT or SIGTERM
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Execute runs cmd and exits with status 1 on error
func Execute(cmd *cobra.Command) {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
