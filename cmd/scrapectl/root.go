package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gustavoatec2-lang/havencomics/internal/app"
	"github.com/gustavoatec2-lang/havencomics/internal/config"
)

var (
	flagSource string
	flagProxy  string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:           "scrapectl",
	Short:         "Scrape manga chapters through a fetch proxy and publish them to the catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "site profile key (defaults to DEFAULT_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "proxy provider id (defaults to DEFAULT_PROXY)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the environment configuration and builds the pipeline
// with the source and proxy chosen on the command line.
func bootstrap() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if flagSource != "" || flagProxy != "" {
		if err := application.Pipeline.Configure(flagSource, flagProxy); err != nil {
			application.Close()
			return nil, err
		}
	}
	return application, nil
}
