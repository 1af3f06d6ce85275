package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/pipelineerr"
)

// loadVersion fetches one versions row by id, translating a miss into a
// NotFoundError so the caller rejects the message without requeue
// instead of retrying a lookup that can never succeed.
func loadVersion(ctx context.Context, db *dbgateway.Gateway, id int64) (domain.Version, error) {
	rows, err := db.Select(ctx, "versions", nil, map[string]any{"id": id}, dbgateway.SelectOptions{})
	if err != nil {
		return domain.Version{}, err
	}
	if len(rows) == 0 {
		return domain.Version{}, pipelineerr.NewNotFoundError("versions", fmt.Sprintf("%d", id))
	}
	return rowToVersion(rows[0]), nil
}

func loadGitweb(ctx context.Context, db *dbgateway.Gateway, id int64) (domain.Gitweb, error) {
	rows, err := db.Select(ctx, "gitweb", nil, map[string]any{"id": id}, dbgateway.SelectOptions{})
	if err != nil {
		return domain.Gitweb{}, err
	}
	if len(rows) == 0 {
		return domain.Gitweb{}, pipelineerr.NewNotFoundError("gitweb", fmt.Sprintf("%d", id))
	}
	return rowToGitweb(rows[0]), nil
}

func rowToVersion(row map[string]any) domain.Version {
	return domain.Version{
		ID:                     asInt64(row["id"]),
		Project:                asString(row["project"]),
		Branch:                 asString(row["branch"]),
		Version:                asString(row["version"]),
		ReleaseDate:            asTime(row["release_date"]),
		Type:                   asString(row["type"]),
		URLTar:                 asString(row["url_tar"]),
		URLZip:                 asString(row["url_zip"]),
		ChecksumTarMD5:         asString(row["checksum_tar_md5"]),
		ChecksumTarSHA1:        asString(row["checksum_tar_sha1"]),
		ChecksumZipMD5:         asString(row["checksum_zip_md5"]),
		ChecksumZipSHA1:        asString(row["checksum_zip_sha1"]),
		Downloaded:             asBool(row["downloaded"]),
		Extracted:              asBool(row["extracted"]),
		ExtractDirectory:       asString(row["extract_directory"]),
		AnalyzedCVSAnaly:       asBool(row["analyzed_cvsanaly"]),
		AnalyzedPHPLoc:         asBool(row["analyzed_phploc"]),
		AnalyzedPDepend:        asBool(row["analyzed_pdepend"]),
		AnalyzedGithubLinguist: asBool(row["analyzed_github_linguist"]),
	}
}

func rowToGitweb(row map[string]any) domain.Gitweb {
	return domain.Gitweb{
		ID:               asInt64(row["id"]),
		Project:          asString(row["project"]),
		RepositoryName:   asString(row["repository_name"]),
		RepositoryURL:    asString(row["repository_url"]),
		CheckoutDir:      asString(row["checkout_directory"]),
		AnalyzedCVSAnaly: asBool(row["analyzed_cvsanaly"]),
	}
}

// updateVersion persists a sparse set of columns on the versions row id.
func updateVersion(ctx context.Context, db *dbgateway.Gateway, id int64, values map[string]any) error {
	return db.Update(ctx, "versions", values, map[string]any{"id": id})
}

func updateGitweb(ctx context.Context, db *dbgateway.Gateway, id int64, values map[string]any) error {
	return db.Update(ctx, "gitweb", values, map[string]any{"id": id})
}

// The go-sql-driver/mysql driver returns numeric columns as int64,
// strings/varchars as []byte (unless the column is typed otherwise), and
// DATETIME columns as time.Time when parseTime=true is set on the DSN
// (internal/dbgateway always sets it). These helpers tolerate both the
// driver's native types and the plain Go types sqlmock-based tests hand
// back, so the same code path works against both.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case []byte:
		var n int64
		fmt.Sscanf(string(t), "%d", &n)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case []byte:
		return len(t) == 1 && (t[0] == '1')
	default:
		return false
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		parsed, err := time.Parse("2006-01-02 15:04:05", string(t))
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
