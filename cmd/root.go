package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/vizeval-cli/internal/config"
	"github.com/KaramelBytes/vizeval-cli/internal/logger"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "vizeval",
	Short: "vizeval: score LLM column choices against Draco chart recommendations",
	Long: `vizeval asks a language model which two columns of a dataset make the best chart,
completes every column pair into Draco chart recommendations, scores each recommendation
by solver cost and LLM-judged quality, and writes per-run and summary CSV reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main(). It returns the process exit code.
func Execute() int {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vizeval/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	if _, err := currentConfig(); err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// currentConfig loads the configuration once, applies flag overrides and
// installs the default logger.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		c.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		c.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		c.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if debug {
		c.LogLevel = "debug"
	}
	slog.SetDefault(logger.New(c.LogLevel, c.LogFormat, os.Stderr))
	cfg = c
	return cfg, nil
}
