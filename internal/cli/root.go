// Package cli implements the shiftcal command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shiftcal/internal/config"
	appLog "shiftcal/internal/log"
)

var (
	version = "dev" // semantic version (e.g., "v1.2.3")
	commit  string  // git commit SHA
	date    string  // build timestamp
)

// SetVersion sets the version information displayed by --version.
// The main package calls it with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	listen     string
	verbose    bool
	logLevel   string
}

// Execute runs the shiftcal CLI with ctx as the root context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:          "shiftcal",
		Short:        "Rider shift calendar with overlap-aware layout",
		Long:         `shiftcal loads rider shifts from roster feeds, lays out each day so overlapping shifts share the column width (or fan out as a deck when too narrow) and serves the result as JSON, HTML and a PNG snapshot.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := appLog.ParseLevel(g.logLevel)
			if g.verbose {
				level = appLog.LevelDebug
			}
			appLog.SetLevel(level)
			appLog.SetOutput(cmd.ErrOrStderr())
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("shiftcal %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "path to config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&g.listen, "listen", "", "HTTP listen address (overrides config if set)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, error")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newLayoutCmd())
	root.AddCommand(newWeekCmd(g))
	root.AddCommand(newSnapshotCmd(g))

	return root
}

// loadConfig loads and validates the config, applying --listen.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	if g.listen != "" {
		cfg.Listen = g.listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appLog.Debug("effective config",
		"path", g.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"days", cfg.Days,
		"view", cfg.View,
		"roster_count", len(cfg.Roster),
		"cache", cfg.Cache.Backend,
	)
	return cfg, nil
}
