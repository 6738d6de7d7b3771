package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chriscorrea/civil/internal/app"
	"github.com/chriscorrea/civil/internal/config"
	"github.com/chriscorrea/civil/internal/fetch"
	"github.com/chriscorrea/civil/internal/report"
)

// settings is loaded once per invocation by the root command
var settings *config.Config

// setupLogger configures the default slog logger based on debug mode
func setupLogger(debug bool) {
	var level slog.Level
	if debug {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// loadSettings reads .env, the config file and the environment, then applies
// the persistent flag overrides
func loadSettings(cmd *cobra.Command) error {
	// .env is optional
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("database") {
		cfg.Database, _ = cmd.Flags().GetString("database")
	}
	if cmd.Flags().Changed("stemmer") {
		cfg.Stemmer, _ = cmd.Flags().GetString("stemmer")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Training.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.Debug("Configuration loaded", "database", cfg.Database, "stemmer", cfg.Stemmer)
	settings = cfg
	return nil
}

// env builds the shared application environment from settings and flags
func env(cmd *cobra.Command) app.Env {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return app.Env{
		Database: settings.Database,
		Fetch: fetch.Options{
			MaxBytes:  settings.Fetch.MaxBytes,
			Timeout:   settings.Fetch.Timeout,
			UserAgent: settings.Fetch.UserAgent,
		},
		Quiet: quiet,
	}
}

// printer returns a report printer for stdout honoring --format and --no-color
func printer(cmd *cobra.Command) (*report.Printer, error) {
	name, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	colored := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
	return report.New(os.Stdout, format, colored), nil
}

// commandContext returns a context cancelled on interrupt
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

var rootCmd = &cobra.Command{
	Use:   "civil",
	Short: "A CLI tool for toxic comment classification",
	Long: `Civil trains and serves toxic comment classifiers. Comments are normalized
(tokenized, stripped of stopwords and non-alphabetic tokens, stemmed) with one
shared pipeline for training and prediction, vectorized with TF-IDF and
classified by a random forest. Trained models are kept in a local registry.

Examples:
  civil train train.csv --name baseline
  civil predict --text "You are so stupid and worthless!!!"
  civil predict --split https://example.com/discussion
  civil normalize "The quick Fox3 runs!!"
  civil stats train.csv --unit tokens
  civil models`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// configure logging pending debug flag
		debug, _ := cmd.Flags().GetBool("debug")
		setupLogger(debug)
		return loadSettings(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file (default: user config dir civil/config.yaml)")
	flags.String("database", "", "Path to the model registry database")
	flags.String("stemmer", "lancaster", "Stemming algorithm: lancaster or porter2")
	flags.Int("workers", 0, "Parallel workers for normalization and training (default: all CPUs)")
	flags.StringP("format", "f", "table", "Output format: table, text or json")
	flags.Bool("no-color", false, "Disable colored output")
	flags.BoolP("quiet", "q", false, "Suppress warnings and progress messages")
	flags.BoolP("debug", "D", false, "Enable debug logging")
	_ = flags.MarkHidden("debug")

	rootCmd.AddCommand(normalizeCmd, trainCmd, predictCmd, modelsCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
