package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"obsmask/internal/config"
	"obsmask/internal/logging"
)

var (
	envFiles  []string
	logLevel  string
	logFormat string

	// env and logger are set up before any subcommand runs.
	env    config.Env
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "obsmask",
	Short: "obsmask validates observation datasets against a data model",
	Long: `obsmask coerces a raw observation dataset to the types of its data model,
checks numeric ranges, timestamps and code tables, and writes a True/False
quality mask with one column per element.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := config.LoadEnv(envFiles...)
		if err != nil {
			return err
		}
		env = e
		level, format := env.LogLevel, env.LogFormat
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logger = logging.Setup(level, format)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}
