package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/config"
	"github.com/jackzampolin/invoicex/internal/home"
	"github.com/jackzampolin/invoicex/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string

	cfgManager *config.Manager
	homePaths  *home.Dir
	logLevel   = new(slog.LevelVar)
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "invoicex",
	Short: "Extract structured fields from invoice PDFs",
	Long: `invoicex reads invoice PDFs and returns five normalized fields:
invoice date, reference, net amount, VAT amount and total amount.

Text-based PDFs are read directly; scanned ones go through OCR. A local
language model served over an OpenAI-compatible API maps the text to fields,
which are then validated so a bad value only nulls its own field.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(string(format))

		// .env is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		homePaths, err = home.New(homeDir)
		if err != nil {
			return err
		}
		if cfgFile == "" && homeDir != "" && homePaths.ConfigExists() {
			cfgFile = homePaths.ConfigPath()
		}

		cfgManager, err = config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		cfg := cfgManager.Get()
		logger = newLogger(cfg.Log)
		slog.SetDefault(logger)

		cfgManager.OnChange(func(c *config.Config) {
			if lvl, err := config.ParseLevel(c.Log.Level); err == nil {
				logLevel.Set(lvl)
			}
		})
		return nil
	},
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays machine readable.
func newLogger(cfg config.LogCfg) *slog.Logger {
	if lvl, err := config.ParseLevel(cfg.Level); err == nil {
		logLevel.Set(lvl)
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.invoicex/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "invoicex home directory (default: ~/.invoicex)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
}
