package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/config"
	"github.com/erazemk/shramba/internal/logger"
	"github.com/erazemk/shramba/internal/store"
)

var (
	configPath string
	cfg        config.Config
	closeLog   func()

	rootCmd = &cobra.Command{
		Use:           "shramba",
		Short:         "Home inventory server with a location tree and yarn stash tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			closeLog, err = setupLogger(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML, TOML or JSON)")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd, rulesCmd)
}

// setupLogger installs the default logger. If a log file is configured, every
// level is also written to it.
func setupLogger(c config.Config) (func(), error) {
	stdout := io.Writer(os.Stdout)
	stderr := io.Writer(os.Stderr)

	var cleanup func()
	if c.Log.Path != "" {
		f, err := os.OpenFile(c.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdout = io.MultiWriter(os.Stdout, f)
		stderr = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(logger.New(c.App.Env, stdout, stderr))
	return cleanup, nil
}

func codeFormat(c config.Config) store.CodeFormat {
	return store.CodeFormat{
		Prefix:      c.Codes.Prefix,
		Width:       c.Codes.Width,
		MaxAttempts: c.Codes.MaxAttempts,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
