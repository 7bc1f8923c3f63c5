// Package build runs the external build command for one target with the
// compiler selection for that target.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/cperrin88/nifpre/internal/logger"
	"github.com/cperrin88/nifpre/pkg/errors"
)

// Variables exported to the build command in addition to Env.
const (
	EnvTarget    = "NIFPRE_TARGET"
	EnvOutputDir = "NIFPRE_OUTPUT_DIR"
)

// Job describes one build invocation.
type Job struct {
	Target     string
	Args       []string
	Env        Env
	ProjectDir string
	// OutputDir is cleaned before the build and packaged after it.
	OutputDir string
}

// Builder builds one target.
type Builder interface {
	Build(ctx context.Context, job Job) error
}

// ExecBuilder runs a configured command. Its exit status decides success.
type ExecBuilder struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewExecBuilder creates an ExecBuilder writing to the process's stdout and
// stderr.
func NewExecBuilder(command []string) *ExecBuilder {
	return &ExecBuilder{Command: command, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Build implements Builder.
func (b *ExecBuilder) Build(ctx context.Context, job Job) error {
	if len(b.Command) == 0 {
		return errors.New(errors.KindConfig, "build", job.Target, errors.ErrNoBuildCommand)
	}

	args := make([]string, 0, len(b.Command)-1+len(job.Args))
	args = append(args, b.Command[1:]...)
	args = append(args, job.Args...)

	cmd := exec.CommandContext(ctx, b.Command[0], args...)
	cmd.Dir = job.ProjectDir
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	cmd.Env = append(os.Environ(), job.Env.List()...)
	cmd.Env = append(cmd.Env, EnvTarget+"="+job.Target, EnvOutputDir+"="+job.OutputDir)

	logger.Debug("Running build command", logger.Fields{
		"target":  job.Target,
		"command": cmd.String(),
		"cc":      job.Env.CC,
	})

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		err = fmt.Errorf("%w: exit status %d", errors.ErrBuildFailed, exitError.ExitCode())
	} else {
		err = fmt.Errorf("%w: %w", errors.ErrBuildFailed, err)
	}
	return errors.New(errors.KindBuild, "build", job.Target, err).WithRemedy("nifpre precompile")
}
