// vimqa is the data-access core of the VIMQA test manager.
//
// It owns the SQLite test-case catalogue and exposes it three ways: as an
// HTTP API for the web front end (serve), as one-shot CLI commands for
// scripts and debugging, and as change events on MQTT for anything that
// needs to react to catalogue edits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/vimqa-core/migrations"

	"github.com/nerrad567/vimqa-core/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	appName = "vimqa"

	// defaultConfigPath is used when neither --config nor VIMQA_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the environment variable holding the config path.
	configEnv = "VIMQA_CONFIG"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Cancel on Ctrl+C and SIGTERM so serve and watch shut down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

// rootCmd builds the command tree.
func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "VIMQA test-case catalogue",
		Long: `vimqa manages the VIMQA test-case catalogue: submodules, modules,
features, user stories, tests, test cases and their procedure steps.

Run "vimqa serve" for the HTTP API, or use the one-shot commands to
inspect and edit the database from a shell.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")

	cmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		queryCmd(&configPath),
		countCmd(&configPath),
		resolveCmd(&configPath),
		procedureCmd(&configPath),
		analyzeCmd(&configPath),
		ageCmd(&configPath),
		purgeCmd(&configPath),
		watchCmd(&configPath),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (commit: %s, built: %s)\n", appName, version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses VIMQA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the config named by flagPath, VIMQA_CONFIG or the
// default path, in that order. A missing file at the default path falls
// back to built-in defaults; a missing file that was asked for is an error.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = getConfigPath()
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if flagPath == "" && os.Getenv(configEnv) == "" && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, "", nil
	}
	return nil, path, fmt.Errorf("loading config: %w", err)
}
