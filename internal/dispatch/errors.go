package dispatch

import (
	"errors"
	"fmt"

	"github.com/nixgate/nixgate/internal/command"
)

var (
	// ErrUnknownTool means the request named a tool the registry does
	// not carry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrConfirmationRequired means a destructive tool was invoked
	// without the confirm flag. The command is never built in that case.
	ErrConfirmationRequired = errors.New("confirmation required for destructive tool")
	// ErrTimeout and ErrCancelled re-export the runner's sentinels so
	// callers only import this package.
	ErrTimeout   = command.ErrTimeout
	ErrCancelled = command.ErrCancelled
)

// SchemaError reports a request whose argument structure was rejected
// before any value-level validation ran.
type SchemaError struct {
	Tool   string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %s", e.Tool, e.Detail)
}

// ExternalCallError reports an external command that failed: either it
// ran and exited non-zero, or it could not be started at all (ExitCode
// -1). When the command ran, the dispatcher still returns its captured
// output alongside this error.
type ExternalCallError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExternalCallError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: command failed with exit code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s: command failed with exit code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}
