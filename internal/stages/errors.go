package stages

import (
	"fmt"

	"github.com/eluceo/jacobine/internal/pipelineerr"
	"github.com/eluceo/jacobine/internal/process"
)

// newEnvelopeError wraps a JSON decode failure as a UsageError: a
// malformed envelope is rejected without requeue rather than retried,
// since retrying an unparseable body can never succeed.
func newEnvelopeError(routingKey string, cause error) error {
	return pipelineerr.NewUsageError(fmt.Sprintf("malformed %s envelope: %v", routingKey, cause))
}

// extractionFailed wraps a non-zero tool exit as a ProcessError carrying
// the full command line, exit code, and both output streams for the
// handler to log.
func extractionFailed(result process.Result) error {
	return pipelineerr.NewProcessError(result.CommandLine, result.ExitCode, result.Stdout, result.Stderr, nil)
}
