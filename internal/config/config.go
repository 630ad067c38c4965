package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the selected provider needs a key and none is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set in environment variables")

// Global configuration structure.
type Global struct {
	// LLM provider and credentials
	Provider       string `mapstructure:"provider" yaml:"provider"`
	Model          string `mapstructure:"model" yaml:"model"`
	EvaluatorModel string `mapstructure:"evaluator_model" yaml:"evaluator_model"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`

	// Pipeline
	Dataset                string `mapstructure:"dataset" yaml:"dataset"`
	DatasetSheet           string `mapstructure:"dataset_sheet" yaml:"dataset_sheet"`
	RecommendationCounts   []int  `mapstructure:"recommendation_counts" yaml:"recommendation_counts"`
	OutputDir              string `mapstructure:"output_dir" yaml:"output_dir"`
	SummaryFile            string `mapstructure:"summary_file" yaml:"summary_file"`
	EvaluationGoal         string `mapstructure:"evaluation_goal" yaml:"evaluation_goal"`
	EvaluatorMaxSpecTokens int    `mapstructure:"evaluator_max_spec_tokens" yaml:"evaluator_max_spec_tokens"`
	ValidateSpecs          bool   `mapstructure:"validate_specs" yaml:"validate_specs"`

	// Constraint engine
	DracoMode       string   `mapstructure:"draco_mode" yaml:"draco_mode"`
	DracoURL        string   `mapstructure:"draco_url" yaml:"draco_url"`
	DracoCommand    string   `mapstructure:"draco_command" yaml:"draco_command"`
	DracoArgs       []string `mapstructure:"draco_args" yaml:"draco_args"`
	DracoTimeoutSec int      `mapstructure:"draco_timeout_sec" yaml:"draco_timeout_sec"`

	// HTTP/Retry configuration
	HTTPTimeoutSec       int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts     int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs     int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs      int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	LLMRequestsPerSecond float64 `mapstructure:"llm_requests_per_second" yaml:"llm_requests_per_second"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.vizeval/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, env, config file, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is applied first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VIZEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The credential keeps its conventional name.
	if err := v.BindEnv("api_key", "VIZEVAL_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api_key env: %w", err)
	}

	// Defaults
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4")
	v.SetDefault("evaluator_model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("dataset", "")
	v.SetDefault("dataset_sheet", "")
	v.SetDefault("recommendation_counts", []int{3, 5})
	v.SetDefault("output_dir", "scoring_results")
	v.SetDefault("summary_file", "result_table.csv")
	v.SetDefault("evaluation_goal", "")
	v.SetDefault("evaluator_max_spec_tokens", 6000)
	v.SetDefault("validate_specs", true)
	// Draco defaults
	v.SetDefault("draco_mode", "http")
	v.SetDefault("draco_url", "http://127.0.0.1:8000/draco")
	v.SetDefault("draco_command", "")
	v.SetDefault("draco_args", []string{})
	v.SetDefault("draco_timeout_sec", 120)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("llm_requests_per_second", 0.0)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit file that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.EvaluatorModel == "" {
		c.EvaluatorModel = c.Model
	}
	return &c, nil
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".vizeval"), nil
}

// Validate checks the pipeline settings that the run command depends on.
func (c *Global) Validate() error {
	if len(c.RecommendationCounts) == 0 {
		return errors.New("recommendation_counts must not be empty")
	}
	seen := make(map[int]struct{}, len(c.RecommendationCounts))
	for _, n := range c.RecommendationCounts {
		if n <= 0 {
			return fmt.Errorf("recommendation_counts: %d is not a positive integer", n)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("recommendation_counts: %d listed twice", n)
		}
		seen[n] = struct{}{}
	}
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.SummaryFile == "" {
		return errors.New("summary_file must not be empty")
	}
	switch c.DracoMode {
	case "http":
		if c.DracoURL == "" {
			return errors.New("draco_url is required when draco_mode is http")
		}
	case "exec":
		if c.DracoCommand == "" {
			return errors.New("draco_command is required when draco_mode is exec")
		}
	default:
		return fmt.Errorf("invalid draco_mode: %s (use http or exec)", c.DracoMode)
	}
	return nil
}

// RequireAPIKey fails when the configured provider needs a key that is not set.
func (c *Global) RequireAPIKey() error {
	if strings.EqualFold(c.Provider, "ollama") || strings.EqualFold(c.Provider, "local") {
		return nil
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RunFiles returns one per-run CSV path per recommendation count, in config order.
func (c *Global) RunFiles() []string {
	out := make([]string, len(c.RecommendationCounts))
	for i, n := range c.RecommendationCounts {
		out[i] = filepath.Join(c.OutputDir, "chart_scores_top"+strconv.Itoa(n)+".csv")
	}
	return out
}

// SummaryPath returns the consolidated summary CSV path.
func (c *Global) SummaryPath() string {
	if filepath.IsAbs(c.SummaryFile) {
		return c.SummaryFile
	}
	return filepath.Join(c.OutputDir, c.SummaryFile)
}

// ManifestPath returns where the run manifest is written.
func (c *Global) ManifestPath() string {
	return filepath.Join(c.OutputDir, "run_manifest.json")
}
