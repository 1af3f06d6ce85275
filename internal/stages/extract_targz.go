package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eluceo/jacobine/internal/domain"
)

// ExtractTargz implements the Extract.Targz stage: shells
// out to tar -xzf, records the extraction directory, and fans out one
// analysis.* message per analyzer configured for the project.
type ExtractTargz struct {
	deps *Deps
}

// NewExtractTargz builds an ExtractTargz handler.
func NewExtractTargz(deps *Deps) *ExtractTargz {
	return &ExtractTargz{deps: deps}
}

func (h *ExtractTargz) Handle(ctx context.Context, body []byte) error {
	var env domain.ExtractTargzEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return newEnvelopeError("extract.targz", err)
	}

	version, err := loadVersion(ctx, h.deps.DB, env.VersionID)
	if err != nil {
		return err
	}

	extractDir := extractDirectory(h.deps.Project.ReleasesPath, env.VersionID)

	if !version.Extracted {
		if _, err := h.deps.Runner.Run(ctx, "mkdir", "-p", extractDir); err != nil {
			return err
		}

		result, err := h.deps.Runner.Run(ctx, h.tarPath(), "-xzf", env.FilePath, "-C", extractDir)
		if err != nil {
			return err
		}
		if !result.Successful() {
			return extractionFailed(result)
		}

		if err := updateVersion(ctx, h.deps.DB, version.ID, map[string]any{
			"extracted":         1,
			"extract_directory": extractDir,
		}); err != nil {
			return err
		}
	}

	return h.publishAnalyses(ctx, env, extractDir)
}

func (h *ExtractTargz) publishAnalyses(ctx context.Context, env domain.ExtractTargzEnvelope, directory string) error {
	stage, ok := h.deps.Project.Consumer["Extract.Targz"]
	if !ok {
		return nil
	}

	for _, analyzer := range stage.Analyzers {
		routingKey, ok := analyzerRoutingKey(analyzer)
		if !ok {
			continue
		}

		out := domain.AnalysisEnvelope{
			Project:   env.Project,
			RecordID:  env.VersionID,
			Table:     "versions",
			Directory: directory,
		}
		if err := h.deps.Queue.Publish(ctx, h.deps.Project.RabbitMQExchange, routingKey, out); err != nil {
			return err
		}
	}
	return nil
}

func analyzerRoutingKey(analyzer string) (string, bool) {
	switch strings.ToLower(analyzer) {
	case "cvsanaly":
		return string(domain.RoutingAnalysisCVSAnaly), true
	case "phploc":
		return string(domain.RoutingAnalysisPHPLoc), true
	case "pdepend":
		return string(domain.RoutingAnalysisPDepend), true
	case "github-linguist", "githublinguist":
		return string(domain.RoutingAnalysisGithubLinguist), true
	default:
		return "", false
	}
}

// tarPath returns the configured tar binary, falling back to the bare
// PATH lookup name when the application section sets no override.
func (h *ExtractTargz) tarPath() string {
	if h.deps.App.Path != "" {
		return h.deps.App.Path
	}
	return "tar"
}

func extractDirectory(releasesPath string, versionID int64) string {
	return filepath.Join(releasesPath, "extracted", fmt.Sprintf("%d", versionID))
}
