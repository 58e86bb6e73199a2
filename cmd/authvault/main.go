package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/org/authvault/internal/api"
	"github.com/org/authvault/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string

	cfg *config.Config

	// now is the clock used for every code computation.
	now = time.Now
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		printError(cmd.ErrOrStderr(), err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authvault",
		Short:         "AuthVault TOTP authenticator",
		Long:          "A local authenticator that keeps TOTP secrets in an encrypted vault and generates one-time codes.",
		Version:       api.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr())
			return checkFormat()
		},
	}

	root.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	root.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with --format=raw)")
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $AUTHVAULT_CONFIG or <data_dir>/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(
		addCmd(), listCmd(), showCmd(), editCmd(), deleteCmd(),
		searchCmd(), statsCmd(),
		codeCmd(), codesCmd(), verifyCmd(), watchCmd(),
		importURICmd(), qrCmd(),
		backupCmd(), restoreCmd(), exportCmd(), importCmd(),
		configCmd(),
	)
	return root
}

func loadConfig() error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
		if err := c.Validate(); err != nil {
			return err
		}
	}
	cfg = c
	return nil
}

// setupLogging sends diagnostics to w so stdout carries only command output.
func setupLogging(w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(cfg.Level())
}

func checkFormat() error {
	switch outputFormat {
	case "table", "json", "raw":
		return nil
	}
	return fmt.Errorf("unknown output format %q", outputFormat)
}
