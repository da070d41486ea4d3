package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

const (
	defaultStderrCap = 8 << 10
	defaultWaitDelay = 2 * time.Second
)

// ExecError is a failed external command. Stderr holds at most the runner's cap.
type ExecError struct {
	Cmd       string
	ExitCode  int // -1 when the process did not exit on its own
	Stderr    string
	Truncated bool
	Err       error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// execRunner runs OCR binaries. On cancellation the child gets SIGTERM, then SIGKILL after
// waitDelay, and the returned error wraps ctx.Err().
type execRunner struct {
	logger    *slog.Logger
	stderrCap int
	waitDelay time.Duration
}

func newExecRunner(logger *slog.Logger, stderrCap int) execRunner {
	if stderrCap <= 0 {
		stderrCap = defaultStderrCap
	}
	return execRunner{logger: logger, stderrCap: stderrCap, waitDelay: defaultWaitDelay}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = r.waitDelay

	var out bytes.Buffer
	errb := &capWriter{max: r.stderrCap}
	cmd.Stdout = &out
	cmd.Stderr = errb

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if err == nil {
		r.logger.Debug("ocr.exec.ok",
			"cmd", name,
			"elapsed_ms", elapsed,
			"stdout_bytes", out.Len(),
			"stderr_bytes", errb.total,
		)
		return out.Bytes(), errb.Bytes(), nil
	}

	ee := &ExecError{Cmd: name, ExitCode: -1, Stderr: string(bytes.TrimSpace(errb.Bytes())), Truncated: errb.dropped() > 0, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		ee.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		ee.Err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	r.logger.Error("ocr.exec.failed",
		"cmd", name,
		"args", args,
		"exit_code", ee.ExitCode,
		"elapsed_ms", elapsed,
		"error", ee.Err,
		"stderr", ee.Stderr,
		"stderr_dropped", errb.dropped(),
	)
	return out.Bytes(), errb.Bytes(), ee
}

// capWriter keeps the first max bytes written and counts the rest.
type capWriter struct {
	buf   bytes.Buffer
	max   int
	total int
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.total += len(p)
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

func (w *capWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *capWriter) dropped() int { return w.total - w.buf.Len() }
