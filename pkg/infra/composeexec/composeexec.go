// Package composeexec invokes the docker compose command-line tool on a
// generated configuration directory. It supports both the compose v2
// plugin (`docker compose`) and the standalone v1 binary
// (`docker-compose`), preferring the plugin.
package composeexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/parrotstack/parrot/pkg/infra/logger"
)

// ErrCommandNotFound is returned when neither the compose plugin nor the
// standalone binary is available.
var ErrCommandNotFound = errors.New("docker compose command not found: install docker with the compose plugin or the docker-compose binary")

// Runner abstracts subprocess execution so detection and invocation can
// be tested without docker installed.
type Runner interface {
	// Run executes name with args in dir, appending env to the inherited
	// environment, streaming output to stdout and stderr. It returns the
	// process exit code; err is non-nil only when the process could not
	// be started or was interrupted.
	Run(ctx context.Context, dir string, env []string, stdout, stderr io.Writer, name string, args ...string) (int, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, env []string, stdout, stderr io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("run %s: %w", name, err)
}

// Executor runs compose subcommands with a detected base command.
type Executor struct {
	runner Runner
	base   []string
}

// NewExecutor creates an Executor with a custom runner. The base command
// is detected on the first call to Run or by calling Detect.
func NewExecutor(runner Runner) *Executor {
	return &Executor{runner: runner}
}

// Detect probes for a usable compose command and returns a ready
// Executor. The v2 plugin wins over the standalone binary.
func Detect(ctx context.Context) (*Executor, error) {
	e := NewExecutor(execRunner{})
	if err := e.detect(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Executor) detect(ctx context.Context) error {
	if len(e.base) > 0 {
		return nil
	}
	for _, candidate := range [][]string{{"docker", "compose"}, {"docker-compose"}} {
		args := append(candidate[1:], "version")
		code, err := e.runner.Run(ctx, "", nil, io.Discard, io.Discard, candidate[0], args...)
		if err == nil && code == 0 {
			e.base = candidate
			logger.Debug("detected compose command", "command", strings.Join(candidate, " "))
			return nil
		}
	}
	return ErrCommandNotFound
}

// Command returns the detected base command, e.g. "docker compose".
func (e *Executor) Command() string {
	return strings.Join(e.base, " ")
}

// Run executes a compose subcommand in the configuration directory,
// streaming output to stdout and stderr. The returned exit code is the
// subprocess's own and must be propagated by the caller.
func (e *Executor) Run(ctx context.Context, dir string, env []string, stdout, stderr io.Writer, args ...string) (int, error) {
	if err := e.detect(ctx); err != nil {
		return -1, err
	}
	full := append(append([]string{}, e.base[1:]...), args...)
	logger.Debug("running compose command",
		"command", e.Command(), "args", strings.Join(args, " "), "dir", dir)
	return e.runner.Run(ctx, dir, env, stdout, stderr, e.base[0], full...)
}
