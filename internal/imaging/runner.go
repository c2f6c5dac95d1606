// Package imaging wraps the platform tools that extract, copy, and rebuild
// Windows installation media. Every tool invocation goes through a
// package-level runner so tests can intercept commands without executing
// them.
package imaging

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/conneroisu/winforge/internal/errors"
)

// Runner executes an external tool and reports its combined output together
// with the tool's exit code. A non-nil error means the tool did not run at
// all (not found, context cancelled). Exit codes are reported via code
// rather than err because robocopy treats several non-zero codes as
// success.
type Runner func(ctx context.Context, name string, args ...string) (output []byte, code int, err error)

// DefaultRun executes the tool via os/exec.
func DefaultRun(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return output, exitErr.ExitCode(), nil
		}

		return output, -1, err
	}

	return output, 0, nil
}

var run Runner = DefaultRun

// SetRunForTesting replaces the package-level runner. Restore with
// SetRunForTesting(DefaultRun).
func SetRunForTesting(r Runner) {
	run = r
}

// notFound reports whether err means the tool binary is absent from PATH.
func notFound(err error) bool {
	return stderrors.Is(err, exec.ErrNotFound)
}

// toolError builds the failure error for a tool that ran and exited
// non-successfully, folding in its output when there is any.
func toolError(tool string, code int, output []byte) *errors.ForgeError {
	msg := fmt.Sprintf("%s exited with code %d", tool, code)
	if detail := strings.TrimSpace(string(output)); detail != "" {
		msg += ": " + detail
	}

	return errors.NewImagingError(errors.ErrCodeToolFailed, msg, nil)
}
