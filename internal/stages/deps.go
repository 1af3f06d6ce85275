// Package stages implements the Stage Consumers: one Handler per
// routing key, sharing the load-check-work-update-publish template the
// idempotence contract requires.
package stages

import (
	"context"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/process"
)

// Publisher is the slice of *queue.Client every stage handler needs.
// Narrowing it to one method lets handler tests substitute a fake
// instead of dialing a real broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload any) error
}

// ProcessRunner is the slice of *process.Runner every stage handler
// needs, narrowed for the same reason as Publisher.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args ...string) (process.Result, error)
}

// Downloader is the slice of *fetcher.Fetcher the Download.HTTP stage
// needs.
type Downloader interface {
	DownloadToFile(ctx context.Context, url, destPath string) error
}

// Deps bundles every component a stage handler needs. All handlers in
// this package close over a *Deps rather than taking each collaborator
// as a separate constructor argument, since they all need the same set.
// App carries the external binary's configured path and file pattern
// for the one tool this stage shells out to (the zero value for stages,
// like Download.HTTP, that never spawn a process).
type Deps struct {
	DB      *dbgateway.Gateway
	Queue   Publisher
	Runner  ProcessRunner
	Fetch   Downloader
	Log     logger.Logger
	Project config.Project
	App     config.Application
}

// Handler matches internal/consumer.Handler's method set structurally;
// every concrete stage in this package implements it by decoding its own
// envelope type and running its template.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// Registry maps a CLI stage name (the `jacobine consumer <StageName>`
// argument) to the queue name/routing key it binds and the constructor
// for its Handler.
type Registry map[string]StageDescriptor

// StageDescriptor names a stage's queue/routing key, the
// `config.Config.Application` key for the one external tool it shells
// out to (empty if it spawns no process), and builds its Handler from
// shared Deps.
type StageDescriptor struct {
	Queue      string
	RoutingKey string
	AppKey     string
	New        func(deps *Deps) Handler
}

// NewRegistry returns the closed set of stage handlers, keyed by the
// CLI stage name passed to `jacobine consumer`.
func NewRegistry() Registry {
	return Registry{
		"Download\\HTTP":           {Queue: "download.http", RoutingKey: "download.http", New: func(d *Deps) Handler { return NewDownloadHTTP(d) }},
		"Download\\Git":            {Queue: "download.git", RoutingKey: "download.git", AppKey: "git", New: func(d *Deps) Handler { return NewDownloadGit(d) }},
		"Extract\\Targz":           {Queue: "extract.targz", RoutingKey: "extract.targz", AppKey: "tar", New: func(d *Deps) Handler { return NewExtractTargz(d) }},
		"Analysis\\CVSAnaly":       {Queue: "analysis.cvsanaly", RoutingKey: "analysis.cvsanaly", AppKey: string(ToolCVSAnaly), New: func(d *Deps) Handler { return NewAnalysis(d, ToolCVSAnaly) }},
		"Analysis\\PHPLoc":         {Queue: "analysis.phploc", RoutingKey: "analysis.phploc", AppKey: string(ToolPHPLoc), New: func(d *Deps) Handler { return NewAnalysis(d, ToolPHPLoc) }},
		"Analysis\\PDepend":        {Queue: "analysis.pdepend", RoutingKey: "analysis.pdepend", AppKey: string(ToolPDepend), New: func(d *Deps) Handler { return NewAnalysis(d, ToolPDepend) }},
		"Analysis\\GithubLinguist": {Queue: "analysis.github-linguist", RoutingKey: "analysis.github-linguist", AppKey: string(ToolGithubLinguist), New: func(d *Deps) Handler { return NewAnalysis(d, ToolGithubLinguist) }},
	}
}
