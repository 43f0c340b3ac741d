package engines

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/scenecast/internal/tts"
)

// killGrace is how long a subprocess gets to exit after an interrupt.
const killGrace = 100 * time.Millisecond

// run executes a command with stdin pre-attached and returns stdout. On
// timeout the process is interrupted, then killed.
func run(ctx context.Context, timeout time.Duration, stdin io.Reader, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(name, args...)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = stdin
	cmd.WaitDelay = 5 * killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, tts.NewError(tts.ErrorCodeEngineUnavailable, fmt.Sprintf("cannot start %s", name), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			return nil, tts.NewError(tts.ErrorCodeEngineFailure, fmt.Sprintf("%s failed: %s", name, msg), err)
		}
	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = cmd.Process.Kill()
			<-done
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, tts.NewError(tts.ErrorCodeEngineTimeout, fmt.Sprintf("%s timed out after %s", name, timeout), ctx.Err())
		}
		return nil, tts.NewError(tts.ErrorCodeCanceled, fmt.Sprintf("%s canceled", name), ctx.Err())
	}

	return stdout.Bytes(), nil
}

// checkText validates speakable text against an engine limit.
func checkText(text string, limit int) error {
	if strings.TrimSpace(text) == "" {
		return tts.ErrEmptyText
	}
	if limit > 0 && len(text) > limit {
		return tts.NewError(tts.ErrorCodeTextTooLong,
			fmt.Sprintf("text too long: %d characters (max %d)", len(text), limit), nil)
	}
	return nil
}
