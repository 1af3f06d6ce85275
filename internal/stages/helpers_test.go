package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitCheckoutDir_DistinctURLsNeverAlias(t *testing.T) {
	a := gitCheckoutDir("/data/git", "typo3", "https://github.com/typo3/core.git")
	b := gitCheckoutDir("/data/git", "typo3", "https://github.com/typo3-core.git")

	assert.NotEqual(t, a, b)
}

func TestGitCheckoutDir_SameURLIsDeterministic(t *testing.T) {
	a := gitCheckoutDir("/data/git", "typo3", "https://github.com/typo3/core.git")
	b := gitCheckoutDir("/data/git", "typo3", "https://github.com/typo3/core.git")

	assert.Equal(t, a, b)
}

func TestHasLocalMasterBranch_PresentAndCurrent(t *testing.T) {
	assert.True(t, hasLocalMasterBranch("* master\n  develop\n"))
}

func TestHasLocalMasterBranch_PresentNotCurrent(t *testing.T) {
	assert.True(t, hasLocalMasterBranch("  master\n* develop\n"))
}

func TestHasLocalMasterBranch_Absent(t *testing.T) {
	assert.False(t, hasLocalMasterBranch("* develop\n  feature/x\n"))
}

func TestAnalyzerRoutingKey_KnownAndUnknown(t *testing.T) {
	key, ok := analyzerRoutingKey("PHPLoc")
	assert.True(t, ok)
	assert.Equal(t, "analysis.phploc", key)

	_, ok = analyzerRoutingKey("unknown-tool")
	assert.False(t, ok)
}

func TestParseMetrics_PHPLocLabeledCounts(t *testing.T) {
	stdout := "Lines of Code (LOC)                              12345\nClasses                                              42\n"

	metrics := ParseMetrics(ToolPHPLoc, stdout)

	assert.Equal(t, 12345, metrics["lines_of_code"])
	assert.Equal(t, 42, metrics["classes"])
}

func TestParseMetrics_OpaqueToolKeepsRawOutput(t *testing.T) {
	metrics := ParseMetrics(ToolCVSAnaly, "some report text")

	assert.Equal(t, "some report text", metrics["raw_output"])
}
