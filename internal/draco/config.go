package draco

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/KaramelBytes/vizeval-cli/internal/config"
)

// NewFromConfig selects the solver transport named by draco_mode.
func NewFromConfig(c *config.Global, logger *slog.Logger) (Completer, error) {
	timeout := time.Duration(c.DracoTimeoutSec) * time.Second
	switch c.DracoMode {
	case "", "http":
		return NewHTTPClient(
			c.DracoURL,
			timeout,
			c.RetryMaxAttempts,
			time.Duration(c.RetryBaseDelayMs)*time.Millisecond,
			time.Duration(c.RetryMaxDelayMs)*time.Millisecond,
			logger,
		), nil
	case "exec":
		return NewExecClient(c.DracoCommand, c.DracoArgs, timeout)
	default:
		return nil, fmt.Errorf("unknown draco_mode %q", c.DracoMode)
	}
}
