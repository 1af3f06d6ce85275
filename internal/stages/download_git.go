package stages

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/pipelineerr"
)

// DownloadGit implements the Download.Git stage: clones a
// repository on first sight, or pulls an existing checkout — but only
// after a `git branch` probe confirms a local master branch exists. On
// success it publishes analysis.cvsanaly with the checkout directory.
type DownloadGit struct {
	deps *Deps
}

// NewDownloadGit builds a DownloadGit handler.
func NewDownloadGit(deps *Deps) *DownloadGit {
	return &DownloadGit{deps: deps}
}

func (h *DownloadGit) Handle(ctx context.Context, body []byte) error {
	var env domain.DownloadGitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return newEnvelopeError("download.git", err)
	}

	repo, err := loadGitweb(ctx, h.deps.DB, env.GitwebID)
	if err != nil {
		return err
	}

	checkoutDir := gitCheckoutDir(h.deps.Project.GitCheckoutPath, env.Project, repo.RepositoryURL)

	if gitDirExists(checkoutDir) {
		if err := h.pull(ctx, checkoutDir); err != nil {
			return err
		}
	} else {
		if err := h.clone(ctx, repo.RepositoryURL, checkoutDir); err != nil {
			return err
		}
	}

	if err := updateGitweb(ctx, h.deps.DB, repo.ID, map[string]any{"checkout_directory": checkoutDir}); err != nil {
		return err
	}

	out := domain.AnalysisEnvelope{
		Project:   env.Project,
		RecordID:  repo.ID,
		Table:     "gitweb",
		Directory: checkoutDir,
	}
	return h.deps.Queue.Publish(ctx, h.deps.Project.RabbitMQExchange, string(domain.RoutingAnalysisCVSAnaly), out)
}

func (h *DownloadGit) pull(ctx context.Context, checkoutDir string) error {
	git := h.gitPath()

	branchResult, err := h.deps.Runner.Run(ctx, git, "-C", checkoutDir, "branch")
	if err != nil {
		return err
	}
	if !hasLocalMasterBranch(branchResult.Stdout) {
		h.deps.Log.Error("no local master branch, refusing to pull", logger.String("checkout_dir", checkoutDir))
		return pipelineerr.NewProcessError("git branch", 0, branchResult.Stdout, "", nil)
	}

	pullResult, err := h.deps.Runner.Run(ctx, git, "-C", checkoutDir, "pull")
	if err != nil {
		return err
	}
	if !pullResult.Successful() {
		return extractionFailed(pullResult)
	}
	return nil
}

func (h *DownloadGit) clone(ctx context.Context, repositoryURL, checkoutDir string) error {
	if _, err := h.deps.Runner.Run(ctx, "mkdir", "-p", checkoutDir); err != nil {
		return err
	}

	result, err := h.deps.Runner.Run(ctx, h.gitPath(), "clone", "--recursive", repositoryURL, checkoutDir)
	if err != nil {
		return err
	}
	if !result.Successful() {
		return extractionFailed(result)
	}
	return nil
}

// gitPath returns the configured git binary, falling back to the bare
// PATH lookup name when the application section sets no override.
func (h *DownloadGit) gitPath() string {
	if h.deps.App.Path != "" {
		return h.deps.App.Path
	}
	return "git"
}

func gitDirExists(checkoutDir string) bool {
	info, err := os.Stat(checkoutDir + "/.git")
	return err == nil && info != nil
}

// hasLocalMasterBranch reports whether `git branch`'s plain-text output
// lists a local master branch.
func hasLocalMasterBranch(branchOutput string) bool {
	for _, line := range strings.Split(branchOutput, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if strings.TrimSpace(name) == "master" {
			return true
		}
	}
	return false
}
