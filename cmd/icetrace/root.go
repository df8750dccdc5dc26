package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"icetrace/internal/config"
)

func nowUTC() time.Time { return time.Now().UTC() }

func newRootCommand() *cobra.Command {
	globalFlags.debug = false
	globalFlags.configFile = ""
	globalFlags.metricsFile = ""

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Manufacturing traceability registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.metricsFile, "metrics-file", "", "write prometheus metrics to this textfile on exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) {
			return nil
		}
		cfg, err := config.Load(globalFlags.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			cfg.Debug = true
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(config.WithContext(ctx, cfg))
		a, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appContextKey{}, a))
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) {
			return nil
		}
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		return a.close()
	}

	rootCmd.AddCommand(
		addCommand(),
		getCommand(),
		listCommand(),
		traceCommand(),
		verifyCommand(),
		archiveCommand(),
		snapshotsCommand(),
		restoreCommand(),
	)
	return rootCmd
}

// needsApp reports whether cmd works on the registry. Cobra's help and
// completion commands only print text and must not open the store.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// runE wraps a subcommand body with the per-invocation app. The app is closed
// by the root post-run hook on success and here on failure.
func runE(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := fn(cmd, a, args); err != nil {
			_ = a.close()
			return err
		}
		return nil
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
