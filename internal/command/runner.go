package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sentinel results of a supervised run. Callers distinguish "our
// deadline fired" from "the caller gave up" — the two look identical
// at the process level but mean different things in the audit trail.
var (
	ErrTimeout   = errors.New("external call timed out")
	ErrCancelled = errors.New("invocation cancelled")
)

// Output is what the child process produced. A non-zero ExitCode is
// data, not an error: callers decide what an unhappy exit means for
// their tool.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a Spec under a timeout.
type Runner interface {
	// Run executes spec and waits for completion or deadline. The
	// child process is killed on timeout or cancellation; no orphans
	// survive either path. Errors are ErrTimeout, ErrCancelled, or a
	// spawn failure; a process that started and exited non-zero is a
	// successful Run.
	Run(ctx context.Context, spec Spec, timeout time.Duration) (Output, error)
}

// waitDelay bounds how long Wait may linger on inherited pipes after
// the child is killed.
const waitDelay = 5 * time.Second

// ExecRunner runs specs via os/exec.
type ExecRunner struct {
	logger *zap.Logger
}

func NewExecRunner(logger *zap.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, spec Spec, timeout time.Duration) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.WaitDelay = waitDelay
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("executing",
		zap.String("path", spec.Path),
		zap.Strings("args", spec.Args),
		zap.Duration("timeout", timeout),
	)

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	// Caller cancellation wins over our own deadline when both fired.
	if ctx.Err() != nil {
		return Output{}, fmt.Errorf("Run %s: %w", spec.Path, ErrCancelled)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Output{}, fmt.Errorf("Run %s: after %s: %w", spec.Path, timeout, ErrTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	// The process never started: missing executable, permissions, etc.
	return Output{}, fmt.Errorf("Run %s: %w", spec.Path, err)
}
