// Package execx runs external commands (git, npm, systemctl) with their
// output captured for error reporting and optionally streamed to a job log.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"ops-agent/pkg/log"
)

// Env vars inherited from the OS when a command runs with an isolated environment.
var allowedEnvVars = []string{
	"PATH", "HOME", "USER", "LANG", "TMPDIR",
	"http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	"SSH_AUTH_SOCK", "GIT_SSH_COMMAND", "GIT_PROXY_COMMAND",
}

// maxCaptured bounds how much output is kept for error messages.
const maxCaptured = 8 << 10

// Cmd describes one external command invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the base environment.
	Env []string
	// Isolated restricts the inherited environment to allowedEnvVars.
	Isolated bool
	// Out, when set, receives stdout and stderr as they are produced.
	Out io.Writer
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Implementations return an *ExitError when the
// command ran but exited non-zero.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (string, error)
}

// ExitError reports a non-zero exit.
type ExitError struct {
	Cmd    string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
	if out := lastLine(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// ExitCode returns the exit code carried by err, 0 for nil and -1 when err
// did not come from a finished command.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

type osRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return osRunner{}
}

func (osRunner) Run(ctx context.Context, cmd Cmd) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(baseEnv(cmd.Isolated), cmd.Env...)

	captured := &tailBuffer{limit: maxCaptured}
	var out io.Writer = captured
	if cmd.Out != nil {
		out = io.MultiWriter(captured, cmd.Out)
	}
	c.Stdout = out
	c.Stderr = out

	log.Debug("running command", "cmd", cmd.String(), "dir", cmd.Dir)
	err := c.Run()
	output := captured.String()

	if ctx.Err() != nil {
		return output, fmt.Errorf("%s: %w", cmd.String(), ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, &ExitError{Cmd: cmd.String(), Code: exitErr.ExitCode(), Output: output}
		}
		return output, fmt.Errorf("%s: %w", cmd.String(), err)
	}
	return output, nil
}

func baseEnv(isolated bool) []string {
	if !isolated {
		return os.Environ()
	}
	env := make([]string, 0, len(allowedEnvVars))
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
