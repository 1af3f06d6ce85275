package stages

import (
	"context"
	"os"

	"github.com/eluceo/jacobine/internal/process"
)

// publishedMessage records one call to fakePublisher.Publish, for test
// assertions.
type publishedMessage struct {
	Exchange   string
	RoutingKey string
	Payload    any
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, exchange, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{Exchange: exchange, RoutingKey: routingKey, Payload: payload})
	return nil
}

// fakeRunner scripts process.Result/error responses keyed by the binary
// name, so handler tests can drive tar/git/mkdir without spawning real
// subprocesses.
type fakeRunner struct {
	results map[string]process.Result
	errs    map[string]error
	calls   [][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string]process.Result{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (process.Result, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)

	if err, ok := f.errs[name]; ok {
		return process.Result{}, err
	}
	if result, ok := f.results[name]; ok {
		return result, nil
	}
	return process.Result{ExitCode: 0}, nil
}

// fakeDownloader writes content to destPath, simulating a completed
// streaming download without a real HTTP round trip.
type fakeDownloader struct {
	content []byte
	err     error
}

func (f *fakeDownloader) DownloadToFile(_ context.Context, url, destPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, f.content, 0o644)
}
