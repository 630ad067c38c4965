package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizeval-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizeval-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set vizeval configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "provider: %s\n", c.Provider)
		fmt.Fprintf(w, "model: %s\n", c.Model)
		fmt.Fprintf(w, "evaluator_model: %s\n", c.EvaluatorModel)
		if c.BaseURL != "" {
			fmt.Fprintf(w, "base_url: %s\n", c.BaseURL)
		}
		fmt.Fprintf(w, "api_key: %s\n", mask(c.APIKey))
		if c.Dataset != "" {
			fmt.Fprintf(w, "dataset: %s\n", c.Dataset)
		}
		if c.DatasetSheet != "" {
			fmt.Fprintf(w, "dataset_sheet: %s\n", c.DatasetSheet)
		}
		fmt.Fprintf(w, "recommendation_counts: %s\n", joinInts(c.RecommendationCounts))
		fmt.Fprintf(w, "output_dir: %s\n", c.OutputDir)
		fmt.Fprintf(w, "summary_file: %s\n", c.SummaryFile)
		if c.EvaluationGoal != "" {
			fmt.Fprintf(w, "evaluation_goal: %s\n", c.EvaluationGoal)
		}
		fmt.Fprintf(w, "evaluator_max_spec_tokens: %d\n", c.EvaluatorMaxSpecTokens)
		fmt.Fprintf(w, "validate_specs: %t\n", c.ValidateSpecs)
		fmt.Fprintf(w, "draco_mode: %s\n", c.DracoMode)
		switch c.DracoMode {
		case "exec":
			fmt.Fprintf(w, "draco_command: %s %s\n", c.DracoCommand, strings.Join(c.DracoArgs, " "))
		default:
			fmt.Fprintf(w, "draco_url: %s\n", c.DracoURL)
		}
		fmt.Fprintf(w, "draco_timeout_sec: %d\n", c.DracoTimeoutSec)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
		if c.LLMRequestsPerSecond > 0 {
			fmt.Fprintf(w, "llm_requests_per_second: %.3f\n", c.LLMRequestsPerSecond)
		}
		if strings.EqualFold(c.Provider, ai.ProviderOllama) || strings.EqualFold(c.Provider, ai.ProviderLocal) {
			fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
		}
		fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "provider":
		switch p := strings.ToLower(val); p {
		case ai.ProviderOpenAI, ai.ProviderOpenRouter, ai.ProviderOllama, ai.ProviderLocal:
			c.Provider = p
		default:
			return fmt.Errorf("invalid provider: %s (use openai, openrouter or ollama)", val)
		}
	case "model":
		c.Model = val
	case "evaluator_model":
		c.EvaluatorModel = val
	case "base_url":
		c.BaseURL = val
	case "api_key":
		c.APIKey = val
	case "dataset":
		c.Dataset = val
	case "dataset_sheet":
		c.DatasetSheet = val
	case "recommendation_counts":
		counts, err := parseInts(val)
		if err != nil {
			return fmt.Errorf("invalid recommendation_counts: %w", err)
		}
		c.RecommendationCounts = counts
	case "output_dir":
		c.OutputDir = val
	case "summary_file":
		c.SummaryFile = val
	case "evaluation_goal":
		c.EvaluationGoal = val
	case "evaluator_max_spec_tokens":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for evaluator_max_spec_tokens: %v", val)
		}
		c.EvaluatorMaxSpecTokens = i
	case "validate_specs":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for validate_specs: %w", err)
		}
		c.ValidateSpecs = b
	case "draco_mode":
		switch val {
		case "http", "exec":
			c.DracoMode = val
		default:
			return fmt.Errorf("invalid draco_mode: %s (use http or exec)", val)
		}
	case "draco_url":
		c.DracoURL = val
	case "draco_command":
		c.DracoCommand = val
	case "draco_args":
		c.DracoArgs = strings.Fields(val)
	case "draco_timeout_sec", "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "draco_timeout_sec":
			c.DracoTimeoutSec = i
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			c.RetryBaseDelayMs = i
		case "retry_max_delay_ms":
			c.RetryMaxDelayMs = i
		}
	case "llm_requests_per_second":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for llm_requests_per_second: %v", val)
		}
		c.LLMRequestsPerSecond = f
	case "ollama_host":
		c.OllamaHost = val
	case "log_level":
		c.LogLevel = val
	case "log_format":
		if val != "text" && val != "json" {
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
