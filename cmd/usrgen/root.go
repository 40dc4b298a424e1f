package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schemagen/usrgen/config"
	"github.com/schemagen/usrgen/engine"
	"github.com/schemagen/usrgen/targets"
)

var (
	// Global flags
	cfgFile   string
	inputDir  string
	outputDir string
	logLevel  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usrgen",
	Short: "Generate models for many targets from one schema declaration",
	Long: `usrgen reads schema declarations and generates target-specific
models for each of them: validation models, ORM tables and wire schemas,
plus every declared variant.

  usrgen init       # Create a config file and a sample schema
  usrgen generate   # Write generated files
  usrgen validate   # Check generated files are up to date
  usrgen watch      # Regenerate on change
  usrgen inspect    # Print the parsed representation of a schema`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultFile, "config file path")
	rootCmd.PersistentFlags().StringVarP(&inputDir, "input", "i", "", "schema directory (overrides input_dir)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides output_dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// setup loads configuration and builds an engine for it.
func setup(reg prometheus.Registerer) (*config.Config, *engine.Engine, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	e, err := engine.New(cfg, targets.NewRegistry(),
		engine.WithLogger(logger),
		engine.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, e, logger, nil
}
