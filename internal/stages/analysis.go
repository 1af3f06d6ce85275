package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/logger"
)

// Tool names the external static-analysis binary an Analysis handler
// runs. Each maps to its own application config entry and metrics table.
type Tool string

const (
	ToolCVSAnaly       Tool = "cvsanaly"
	ToolPHPLoc         Tool = "phploc"
	ToolPDepend        Tool = "pdepend"
	ToolGithubLinguist Tool = "github-linguist"
)

// toolMetricsTable names the metrics table each analyzer writes into.
var toolMetricsTable = map[Tool]string{
	ToolCVSAnaly:       "metrics_cvsanaly",
	ToolPHPLoc:         "metrics_phploc",
	ToolPDepend:        "metrics_pdepend",
	ToolGithubLinguist: "metrics_github_linguist",
}

// toolAnalyzedColumn names the progress flag column the analysis marks
// on its record once the tool has run.
var toolAnalyzedColumn = map[Tool]string{
	ToolCVSAnaly:       "analyzed_cvsanaly",
	ToolPHPLoc:         "analyzed_phploc",
	ToolPDepend:        "analyzed_pdepend",
	ToolGithubLinguist: "analyzed_github_linguist",
}

// Analysis implements every Analysis.* stage: spawn the
// configured tool against the inbound directory, parse its output where
// the tool emits structured output, write a metrics row keyed by the
// work record id, mark the record analyzed, and ack.
type Analysis struct {
	deps *Deps
	tool Tool
}

// NewAnalysis builds an Analysis handler for tool.
func NewAnalysis(deps *Deps, tool Tool) *Analysis {
	return &Analysis{deps: deps, tool: tool}
}

func (h *Analysis) Handle(ctx context.Context, body []byte) error {
	var env domain.AnalysisEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return newEnvelopeError(fmt.Sprintf("analysis.%s", h.tool), err)
	}

	analyzed, err := h.alreadyAnalyzed(ctx, env)
	if err != nil {
		return err
	}
	if analyzed {
		h.deps.Log.Info("record already analyzed, skipping redelivery", logger.Int64("record_id", env.RecordID))
		return nil
	}

	args := []string{env.Directory}
	if h.deps.App.FilePattern != "" {
		args = append(args, h.deps.App.FilePattern)
	}

	result, err := h.deps.Runner.Run(ctx, h.toolPath(), args...)
	if err != nil {
		return err
	}
	if !result.Successful() {
		return extractionFailed(result)
	}

	metrics := ParseMetrics(h.tool, result.Stdout)
	metrics["record_id"] = env.RecordID

	if _, err := h.deps.DB.Insert(ctx, toolMetricsTable[h.tool], metrics); err != nil {
		return err
	}

	if err := h.markAnalyzed(ctx, env); err != nil {
		return err
	}

	return nil
}

// toolPath returns the configured tool binary, falling back to the bare
// PATH lookup name when the application section sets no override.
func (h *Analysis) toolPath() string {
	if h.deps.App.Path != "" {
		return h.deps.App.Path
	}
	return string(h.tool)
}

// alreadyAnalyzed loads the work record (surfacing NotFoundError on a
// miss) and reports whether this tool's analyzed_<tool> flag is already
// set, so a crash-redelivered message re-acks instead of re-running the
// tool and inserting a second metrics row for the same record.
func (h *Analysis) alreadyAnalyzed(ctx context.Context, env domain.AnalysisEnvelope) (bool, error) {
	if env.Table == "gitweb" {
		repo, err := loadGitweb(ctx, h.deps.DB, env.RecordID)
		if err != nil {
			return false, err
		}
		return repo.AnalyzedCVSAnaly, nil
	}

	version, err := loadVersion(ctx, h.deps.DB, env.RecordID)
	if err != nil {
		return false, err
	}
	switch h.tool {
	case ToolCVSAnaly:
		return version.AnalyzedCVSAnaly, nil
	case ToolPHPLoc:
		return version.AnalyzedPHPLoc, nil
	case ToolPDepend:
		return version.AnalyzedPDepend, nil
	case ToolGithubLinguist:
		return version.AnalyzedGithubLinguist, nil
	default:
		return false, nil
	}
}

func (h *Analysis) markAnalyzed(ctx context.Context, env domain.AnalysisEnvelope) error {
	column := toolAnalyzedColumn[h.tool]
	if env.Table == "gitweb" {
		return updateGitweb(ctx, h.deps.DB, env.RecordID, map[string]any{column: 1})
	}
	return updateVersion(ctx, h.deps.DB, env.RecordID, map[string]any{column: 1})
}
