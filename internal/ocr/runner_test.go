package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func shellRunner(t *testing.T, stderrCap int) execRunner {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return newExecRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), stderrCap)
}

func TestCapWriter(t *testing.T) {
	w := &capWriter{max: 5}
	for _, s := range []string{"abc", "defg", "hi"} {
		if n, err := w.Write([]byte(s)); n != len(s) || err != nil {
			t.Fatalf("Write(%q) = %d, %v", s, n, err)
		}
	}
	if string(w.Bytes()) != "abcde" || w.dropped() != 4 || w.total != 9 {
		t.Fatalf("kept %q dropped %d total %d", w.Bytes(), w.dropped(), w.total)
	}
}

func TestExecRunnerOK(t *testing.T) {
	r := shellRunner(t, 0)
	out, _, err := r.Run(context.Background(), "sh", "-c", "printf 'page text'")
	if err != nil || string(out) != "page text" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

func TestExecRunnerFailureCapsStderr(t *testing.T) {
	r := shellRunner(t, 16)
	_, stderr, err := r.Run(context.Background(), "sh", "-c", "printf '%0100d' 0 >&2; exit 3")

	var ee *ExecError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *ExecError", err)
	}
	if ee.ExitCode != 3 || !ee.Truncated || len(ee.Stderr) != 16 || len(stderr) != 16 {
		t.Fatalf("exec error = %+v, stderr %d bytes", ee, len(stderr))
	}
	if !strings.HasPrefix(ee.Error(), "sh: ") {
		t.Errorf("Error() = %q", ee.Error())
	}
}

func TestExecRunnerCancellation(t *testing.T) {
	r := shellRunner(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := r.Run(ctx, "sh", "-c", "sleep 10")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run took %v after cancellation", elapsed)
	}
}
