// Package cli defines the parkingd command tree.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iliyamo/parking-reservation/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Dev      bool
}

// NewRootCommand creates the root command for parkingd.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "parkingd",
		Short: "Parking reservation engine",
		Long: `parkingd books parking slots, tracks reservations through their
lifecycle and reconciles payments from the hosted checkout gateway.

Configuration comes from the environment; a .env file in the working
directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error); overrides LOG_LEVEL")
	cmd.PersistentFlags().BoolVar(&opts.Dev, "dev", false, "human-readable development logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// newLogger builds the process logger.  fallback is used when --log-level
// is not given.
func newLogger(opts *RootOptions, fallback string) (*zap.Logger, error) {
	raw := opts.LogLevel
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		raw = "info"
	}
	level, err := zapcore.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", raw, err)
	}

	cfg := zap.NewProductionConfig()
	if opts.Dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
