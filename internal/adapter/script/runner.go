// Package script runs external collaborators as subprocesses.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// tailSize bounds how much collaborator output is kept for the log.
const tailSize = 4096

// Runner executes invocations synchronously. It implements pipeline.Runner.
type Runner struct {
	logger *slog.Logger
	// waitDelay is how long a cancelled collaborator gets after SIGTERM
	// before it is killed.
	waitDelay time.Duration
}

// NewRunner creates a Runner. waitDelay is usually SHUTDOWN_TIMEOUT.
func NewRunner(waitDelay time.Duration, logger *slog.Logger) *Runner {
	return &Runner{logger: logger, waitDelay: waitDelay}
}

// Run starts inv and waits for it. A non-zero exit or a failure to start is
// returned as *domain.InvocationError.
func (r *Runner) Run(ctx context.Context, inv domain.Invocation) error {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = r.waitDelay

	out := &tailBuffer{limit: tailSize}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		r.logger.Debug("collaborator finished",
			"collaborator", inv.Collaborator, "output", inv.Output, "duration", elapsed)
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%w)", err, ctxErr)
	}
	r.logger.Error("collaborator failed",
		"collaborator", inv.Collaborator,
		"command", inv.String(),
		"exit_code", code,
		"duration", elapsed,
		"output_tail", out.String(),
	)
	return &domain.InvocationError{Invocation: inv, ExitCode: code, Err: err}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
