package dbgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/pipelineerr"
)

func newGatewayWithMock(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	creds := Credentials{Driver: "mysql", Host: "db.internal", Port: 3306, User: "jacobine", Password: "secret", Database: "typo3"}
	return NewWithDB(db, creds, logger.NewNop()), mock
}

func TestSelect_EmptyTableIsUsageError(t *testing.T) {
	gw, _ := newGatewayWithMock(t)

	_, err := gw.Select(context.Background(), "", nil, nil, SelectOptions{})

	var usageErr *pipelineerr.UsageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestInsert_EmptyValuesIsUsageError(t *testing.T) {
	gw, _ := newGatewayWithMock(t)

	_, err := gw.Insert(context.Background(), "versions", nil)

	var usageErr *pipelineerr.UsageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestUpdate_EmptyWhereIsAllowed(t *testing.T) {
	gw, mock := newGatewayWithMock(t)

	mock.ExpectPrepare("UPDATE versions SET downloaded = ?").
		ExpectExec().
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := gw.Update(context.Background(), "versions", map[string]any{"downloaded": 1}, nil)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_EmptyWhereIsUsageError(t *testing.T) {
	gw, _ := newGatewayWithMock(t)

	err := gw.Delete(context.Background(), "versions", nil)

	var usageErr *pipelineerr.UsageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestInsert_BuildsSortedColumnOrder(t *testing.T) {
	gw, mock := newGatewayWithMock(t)

	mock.ExpectPrepare("INSERT INTO versions \\(branch, project\\) VALUES \\(\\?, \\?\\)").
		ExpectExec().
		WithArgs("main", "typo3").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := gw.Insert(context.Background(), "versions", map[string]any{
		"project": "typo3",
		"branch":  "main",
	})

	require.NoError(t, err)
	assert.Equal(t, "42", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_NonConnectionErrorIsDatabaseErrorWithoutReconnect(t *testing.T) {
	gw, mock := newGatewayWithMock(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().
		WithArgs(1).
		WillReturnError(errors.New("syntax error"))

	_, err := gw.Select(context.Background(), "versions", nil, map[string]any{"id": 1}, SelectOptions{})

	var dbErr *pipelineerr.DatabaseError
	require.ErrorAs(t, err, &dbErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestReconnect_PreservesHostAndPort is a regression test against a
// once-observed bug: a prior version swapped host and port when
// rebuilding its connection string after a "server gone away" error.
// Credentials is the single place host and port are read from on
// reconnect, so this pins down that they are never transposed.
func TestReconnect_PreservesHostAndPort(t *testing.T) {
	creds := Credentials{Driver: "mysql", Host: "db.internal", Port: 3306, User: "jacobine", Password: "secret", Database: "typo3"}

	dsn := creds.dsn()
	assert.Contains(t, dsn, "tcp(db.internal:3306)")
	assert.NotContains(t, dsn, "tcp(3306:db.internal)")
}

func TestIsConnectionLost_RecognizesGoneAwayCodes(t *testing.T) {
	assert.True(t, isConnectionLost(&mysql.MySQLError{Number: 2006, Message: "server has gone away"}))
	assert.True(t, isConnectionLost(&mysql.MySQLError{Number: 2013, Message: "lost connection during query"}))
	assert.False(t, isConnectionLost(&mysql.MySQLError{Number: 1062, Message: "duplicate entry"}))
	assert.False(t, isConnectionLost(errors.New("some other failure")))
}

func TestBuildWhere_ConjunctiveAndDeterministicOrder(t *testing.T) {
	clause, args := buildWhere(map[string]any{"project": "typo3", "id": 7})

	assert.Equal(t, " WHERE id = ? AND project = ?", clause)
	assert.Equal(t, []any{7, "typo3"}, args)
}

func TestBuildWhere_Empty(t *testing.T) {
	clause, args := buildWhere(nil)

	assert.Equal(t, "", clause)
	assert.Nil(t, args)
}
