package stages

import (
	"bufio"
	"strconv"
	"strings"
)

// ParseMetrics extracts the column->value map an analysis handler writes
// to its per-tool metrics table. phploc and pdepend emit a simple
// "Label    Number" text report on stdout; cvsanaly and github-linguist
// are treated as opaque and their full stdout is stored verbatim for
// later inspection.
func ParseMetrics(tool Tool, stdout string) map[string]any {
	switch tool {
	case ToolPHPLoc:
		return parseLabeledCounts(stdout, phplocLabels)
	case ToolPDepend:
		return parseLabeledCounts(stdout, pdependLabels)
	default:
		return map[string]any{"raw_output": stdout}
	}
}

var phplocLabels = map[string]string{
	"Lines of Code (LOC)":               "lines_of_code",
	"Comment Lines of Code (CLOC)":      "comment_lines_of_code",
	"Non-Comment Lines of Code (NCLOC)": "non_comment_lines_of_code",
	"Classes":                           "classes",
	"Methods":                           "methods",
	"Functions":                         "functions",
}

var pdependLabels = map[string]string{
	"Cyclomatic Complexity Number": "cyclomatic_complexity",
	"Maintainability Index":        "maintainability_index",
	"Classes":                      "classes",
	"Methods":                      "methods",
}

// parseLabeledCounts scans stdout line by line for "<label><spaces><number>"
// reports, mapping each recognised label to its metrics-table column per
// labels.
func parseLabeledCounts(stdout string, labels map[string]string) map[string]any {
	result := make(map[string]any)

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for label, column := range labels {
			if !strings.HasPrefix(line, label) {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(line, label))
			rest = strings.ReplaceAll(rest, ",", "")
			if n, err := strconv.Atoi(rest); err == nil {
				result[column] = n
			}
		}
	}
	return result
}
