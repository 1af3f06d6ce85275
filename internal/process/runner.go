// Package process is the Process Runner: spawns the
// opaque external tools the pipeline shells out to — tar, git, phploc,
// pdepend, cvsanaly, github-linguist — with a bounded timeout, and
// captures their exit code and both output streams.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/eluceo/jacobine/internal/pipelineerr"
)

// Result is what a completed (or timed-out) run produced.
type Result struct {
	CommandLine string
	ExitCode    int
	Stdout      string
	Stderr      string
}

// Successful reports whether the process exited zero.
func (r Result) Successful() bool { return r.ExitCode == 0 }

// Runner spawns external binaries under a configured working directory
// and timeout.
type Runner struct {
	workingDir string
	timeout    time.Duration
}

// New builds a Runner. A zero timeout means no deadline is applied.
func New(workingDir string, timeout time.Duration) *Runner {
	return &Runner{workingDir: workingDir, timeout: timeout}
}

// Run executes name with args, waiting up to the runner's configured
// timeout. A non-zero exit code is reported in the returned Result, not
// as an error — callers decide what a given tool's exit codes mean. An
// error is returned only when the process could not be spawned at all or
// was killed for exceeding its timeout.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	commandLine := commandLine(name, args)

	err := cmd.Run()
	result := Result{
		CommandLine: commandLine,
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
	}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return result, pipelineerr.NewProcessError(commandLine, -1, result.Stdout, result.Stderr, context.DeadlineExceeded)
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, pipelineerr.NewProcessError(commandLine, -1, result.Stdout, result.Stderr, err)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s %s", name, strings.Join(args, " "))
}
