// Package build runs the external command that produces a package's
// artifact file. The command is opaque: it either succeeds, reports that
// nothing changed through a dedicated exit code, or fails the run.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"go.uber.org/zap"
)

// Command describes how to build one package.
type Command struct {
	// Args is the program and its arguments. Empty means nothing to run.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// NoChangeExitCode, when non-zero, is the exit code the command uses
	// to say the artifact is already up to date.
	NoChangeExitCode int
}

// Outcome is what a build decided.
type Outcome int

const (
	// Built means a fresh artifact was written.
	Built Outcome = iota
	// Unchanged means the command found nothing to publish.
	Unchanged
	// Skipped means there was no command to run.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Built:
		return "built"
	case Unchanged:
		return "unchanged"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ExitError is returned when the command exits with a code other than
// zero or the no-change code.
type ExitError struct {
	Package  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("build of %s exited with code %d", e.Package, e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Runner executes build commands.
type Runner struct {
	// Stdout and Stderr can be set for testing; defaults to os.Stdout/os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger

	// Force is exported to the command as FORCE_UPDATE so it rebuilds even
	// when its inputs look unchanged.
	Force bool
}

// Run builds pkg. The command inherits the process environment plus
// <PREFIX>_PACKAGE naming the package being built.
func (r *Runner) Run(ctx context.Context, pkg string, command Command) (Outcome, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(command.Args) == 0 {
		logger.Debug("no build command", zap.String("package", pkg))
		return Skipped, nil
	}

	bin, err := exec.LookPath(command.Args[0])
	if err != nil {
		return Built, fmt.Errorf("build command for %s: %w", pkg, err)
	}

	cmd := exec.CommandContext(ctx, bin, command.Args[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = setEnv(os.Environ(), branding.EnvVar("PACKAGE"), pkg)
	if r.Force {
		cmd.Env = setEnv(cmd.Env, "FORCE_UPDATE", "true")
	}

	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	var stderrBuf bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &stderrBuf)

	logger.Info("building package",
		zap.String("package", pkg),
		zap.Strings("command", command.Args),
		zap.String("dir", command.Dir),
	)
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		logger.Info("build finished", zap.String("package", pkg), zap.Duration("elapsed", elapsed))
		return Built, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return Built, fmt.Errorf("running build for %s: %w", pkg, err)
	}
	code := exitErr.ExitCode()
	if command.NoChangeExitCode != 0 && code == command.NoChangeExitCode {
		logger.Info("build reported no change", zap.String("package", pkg), zap.Duration("elapsed", elapsed))
		return Unchanged, nil
	}
	return Built, &ExitError{Package: pkg, ExitCode: code, Stderr: stderrBuf.String()}
}

// setEnv sets or replaces an environment variable in the env slice.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
