package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/pipelineerr"
)

func newTestGateway(t *testing.T) (*dbgateway.Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return dbgateway.NewWithDB(db, dbgateway.Credentials{}, logger.NewNop()), mock
}

// TestDownloadHTTP_HappyPath is scenario S3: a downloadable release
// whose bytes match the stored MD5/SHA1 is written to ReleasesPath,
// marked downloaded, and followed by an extract.targz publish.
func TestDownloadHTTP_HappyPath(t *testing.T) {
	gw, mock := newTestGateway(t)
	releasesPath := t.TempDir()

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url_tar", "checksum_tar_md5", "checksum_tar_sha1", "downloaded"}).
			AddRow(int64(7), "http://h/x.tar.gz", "5d41402abc4b2a76b9719d911017c592", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", int64(0)))

	mock.ExpectPrepare("UPDATE versions SET downloaded = \\?").
		ExpectExec().WithArgs(1, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pub := &fakePublisher{}
	h := NewDownloadHTTP(&Deps{
		DB:      gw,
		Queue:   pub,
		Fetch:   &fakeDownloader{content: []byte("hello")},
		Log:     logger.NewNop(),
		Project: config.Project{Name: "TYPO3", RabbitMQExchange: "JacobineAnalysis", ReleasesPath: releasesPath},
	})

	body, err := json.Marshal(domain.DownloadHTTPEnvelope{Project: "TYPO3", VersionID: 7, FilenamePrefix: "typo3_", FilenamePostfix: ".tar.gz"})
	require.NoError(t, err)

	err = h.Handle(context.Background(), body)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, pub.published, 1)
	assert.Equal(t, "extract.targz", pub.published[0].RoutingKey)

	contents, err := os.ReadFile(filepath.Join(releasesPath, "typo3_7.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

// TestDownloadHTTP_ChecksumMismatch is scenario S4: the file is kept for
// forensics, downloaded stays 0, no follow-on is published, and the
// error is a FetchError (which the consumer runtime disposes of as
// reject-no-requeue).
func TestDownloadHTTP_ChecksumMismatch(t *testing.T) {
	gw, mock := newTestGateway(t)
	releasesPath := t.TempDir()

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url_tar", "checksum_tar_md5", "checksum_tar_sha1", "downloaded"}).
			AddRow(int64(7), "http://h/x.tar.gz", "wrongmd5", "wrongsha1", int64(0)))

	pub := &fakePublisher{}
	h := NewDownloadHTTP(&Deps{
		DB:      gw,
		Queue:   pub,
		Fetch:   &fakeDownloader{content: []byte("hello")},
		Log:     logger.NewNop(),
		Project: config.Project{Name: "TYPO3", RabbitMQExchange: "JacobineAnalysis", ReleasesPath: releasesPath},
	})

	body, err := json.Marshal(domain.DownloadHTTPEnvelope{Project: "TYPO3", VersionID: 7, FilenamePrefix: "typo3_", FilenamePostfix: ".tar.gz"})
	require.NoError(t, err)

	err = h.Handle(context.Background(), body)

	var fetchErr *pipelineerr.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Empty(t, pub.published)

	_, statErr := os.Stat(filepath.Join(releasesPath, "typo3_7.tar.gz"))
	require.NoError(t, statErr, "file must be retained for forensics")
}

func TestDownloadHTTP_MissingRecordIsRejectNoRequeue(t *testing.T) {
	gw, mock := newTestGateway(t)

	mock.ExpectPrepare("SELECT \\* FROM versions WHERE id = ?").
		ExpectQuery().WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	h := NewDownloadHTTP(&Deps{DB: gw, Log: logger.NewNop(), Project: config.Project{ReleasesPath: t.TempDir()}})

	body, _ := json.Marshal(domain.DownloadHTTPEnvelope{VersionID: 99})
	err := h.Handle(context.Background(), body)

	assert.True(t, pipelineerr.IsNotFound(err))
}
