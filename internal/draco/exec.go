package draco

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultExecTimeout = 120 * time.Second

// ExecClient runs a solver bridge command per request. The request JSON is
// written to stdin and a JSON list of completions is read from stdout.
type ExecClient struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewExecClient validates the command and applies the default timeout.
func NewExecClient(command string, args []string, timeout time.Duration) (*ExecClient, error) {
	if command == "" {
		return nil, errors.New("draco exec client needs a command")
	}
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	return &ExecClient{Command: command, Args: args, Timeout: timeout}, nil
}

// Complete implements Completer.
func (c *ExecClient) Complete(ctx context.Context, facts []string, n int) ([]Completion, error) {
	payload, err := newRequest(facts, n)
	if err != nil {
		return nil, err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, c.Command, c.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding stdout must not keep Run blocked past the deadline.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("draco command timed out after %s", c.Timeout)
		}
		if errOutput := strings.TrimSpace(stderr.String()); errOutput != "" {
			return nil, fmt.Errorf("draco command: %w; stderr: %s", err, errOutput)
		}
		return nil, fmt.Errorf("draco command: %w", err)
	}
	return decodeCompletions(stdout.Bytes())
}
