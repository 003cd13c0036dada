// Package capabilities implements the actions the assistant performs on the
// host: OS diagnostics and repairs, application control, browser navigation,
// web searches and weather lookups.
package capabilities

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lewisedginton/ron/pkg/logger"
)

// maxOutput bounds the captured output of a single command.
const maxOutput = 64 * 1024

// Runner executes an external command and returns its combined output.
// A non-zero exit status is reported as an error alongside the output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the host with a per-command timeout.
type ExecRunner struct {
	Timeout time.Duration
	Logger  logger.Logger
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	output := string(out)
	if len(output) > maxOutput {
		output = output[:maxOutput]
	}

	if r.Logger != nil {
		r.Logger.Debug("Command finished",
			logger.StringField("command", name),
			logger.DurationField("duration", time.Since(start)),
			logger.BoolField("ok", err == nil))
	}

	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// ExitCode extracts the exit status from a Runner error, or -1 when the
// command did not run to completion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// DryRunRunner logs commands instead of running them.
type DryRunRunner struct {
	Logger logger.Logger
}

// Run implements Runner.
func (r *DryRunRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.Logger != nil {
		r.Logger.Info("Dry run: command skipped",
			logger.StringField("command", name),
			logger.StringField("args", strings.Join(args, " ")))
	}
	return "", nil
}
