package stages

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/process"
)

func TestAnalysis_PHPLocHappyPath(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	mock.ExpectPrepare("INSERT INTO metrics_phploc").
		ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectPrepare("UPDATE versions SET analyzed_phploc = \\?").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	runner := newFakeRunner()
	runner.results["phploc"] = process.Result{ExitCode: 0, Stdout: "Lines of Code (LOC)    100\n"}

	h := NewAnalysis(&Deps{DB: gw, Runner: runner, Log: logger.NewNop(), Project: config.Project{}}, ToolPHPLoc)

	body, _ := json.Marshal(domain.AnalysisEnvelope{Project: "TYPO3", RecordID: 7, Table: "versions", Directory: "/tmp/extracted/7"})
	err := h.Handle(context.Background(), body)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysis_ToolExitNonZeroIsRejectNoRequeue(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	runner := newFakeRunner()
	runner.results["phploc"] = process.Result{ExitCode: 1, Stderr: "parse error"}

	h := NewAnalysis(&Deps{DB: gw, Runner: runner, Log: logger.NewNop()}, ToolPHPLoc)

	body, _ := json.Marshal(domain.AnalysisEnvelope{Project: "TYPO3", RecordID: 7, Table: "versions", Directory: "/tmp/extracted/7"})
	err := h.Handle(context.Background(), body)

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysis_AlreadyAnalyzedSkipsToolAndAcks(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "analyzed_phploc"}).AddRow(int64(7), int64(1)))

	runner := newFakeRunner()
	h := NewAnalysis(&Deps{DB: gw, Runner: runner, Log: logger.NewNop()}, ToolPHPLoc)

	body, _ := json.Marshal(domain.AnalysisEnvelope{Project: "TYPO3", RecordID: 7, Table: "versions", Directory: "/tmp/extracted/7"})
	err := h.Handle(context.Background(), body)

	require.NoError(t, err)
	require.Empty(t, runner.calls, "already-analyzed record must not rerun the tool")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysis_UsesConfiguredPathAndFilePattern(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	mock.ExpectPrepare("INSERT INTO metrics_phploc").
		ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectPrepare("UPDATE versions SET analyzed_phploc = \\?").
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))

	runner := newFakeRunner()
	runner.results["/usr/local/bin/phploc"] = process.Result{ExitCode: 0, Stdout: "Lines of Code (LOC)    100\n"}

	deps := &Deps{
		DB:     gw,
		Runner: runner,
		Log:    logger.NewNop(),
		App:    config.Application{Path: "/usr/local/bin/phploc", FilePattern: "*.php"},
	}
	h := NewAnalysis(deps, ToolPHPLoc)

	body, _ := json.Marshal(domain.AnalysisEnvelope{Project: "TYPO3", RecordID: 7, Table: "versions", Directory: "/tmp/extracted/7"})
	err := h.Handle(context.Background(), body)

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"/usr/local/bin/phploc", "/tmp/extracted/7", "*.php"}, runner.calls[0])
	require.NoError(t, mock.ExpectationsWereMet())
}
