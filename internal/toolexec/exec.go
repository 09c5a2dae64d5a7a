// Package toolexec runs local helper binaries such as yt-dlp and songrec.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
)

const waitDelay = time.Second

// Runner runs a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// Exec runs commands with os/exec. Commands are started with
// exec.CommandContext, so cancelling the context kills the process.
type Exec struct {
	timeout time.Duration
}

// New creates a runner that bounds every command by timeout.
func New(timeout time.Duration) *Exec {
	return &Exec{timeout: timeout}
}

// Available reports whether name can be found in PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Run looks up name in PATH and runs it with args.
func (e *Exec) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolMissing, name, err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		if msg := lastLine(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %v | %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// lastLine returns the last non-empty stderr line, which is where these
// tools print the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			if len(l) > 200 {
				l = l[:200]
			}
			return l
		}
	}
	return ""
}

var _ Runner = (*Exec)(nil)
