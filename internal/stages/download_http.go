package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/fetcher"
	"github.com/eluceo/jacobine/internal/logger"
)

// DownloadHTTP implements the Download.HTTP stage:
// streams a release's url_tar to ReleasesPath, verifies its MD5/SHA1
// against the work record's stored checksums, marks it downloaded, and
// publishes extract.targz with the file's absolute path.
type DownloadHTTP struct {
	deps *Deps
}

// NewDownloadHTTP builds a DownloadHTTP handler.
func NewDownloadHTTP(deps *Deps) *DownloadHTTP {
	return &DownloadHTTP{deps: deps}
}

func (h *DownloadHTTP) Handle(ctx context.Context, body []byte) error {
	var env domain.DownloadHTTPEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return newEnvelopeError("download.http", err)
	}

	version, err := loadVersion(ctx, h.deps.DB, env.VersionID)
	if err != nil {
		return err
	}

	destPath := filepath.Join(h.deps.Project.ReleasesPath, fmt.Sprintf("%s%d%s", env.FilenamePrefix, env.VersionID, env.FilenamePostfix))

	if version.Downloaded {
		h.deps.Log.Info("version already downloaded, skipping fetch", logger.Int64("version_id", env.VersionID))
		return h.publishExtract(ctx, env, destPath)
	}

	if err := h.deps.Fetch.DownloadToFile(ctx, version.URLTar, destPath); err != nil {
		return err
	}

	if err := fetcher.VerifyChecksums(destPath, version.ChecksumTarMD5, version.ChecksumTarSHA1); err != nil {
		h.deps.Log.Critical("checksum mismatch, keeping file for forensics", logger.String("path", destPath), logger.Error(err))
		return err
	}

	if err := updateVersion(ctx, h.deps.DB, version.ID, map[string]any{"downloaded": 1}); err != nil {
		return err
	}

	return h.publishExtract(ctx, env, destPath)
}

func (h *DownloadHTTP) publishExtract(ctx context.Context, env domain.DownloadHTTPEnvelope, filePath string) error {
	out := domain.ExtractTargzEnvelope{
		Project:   env.Project,
		VersionID: env.VersionID,
		FilePath:  filePath,
	}
	return h.deps.Queue.Publish(ctx, h.deps.Project.RabbitMQExchange, string(domain.RoutingExtractTargz), out)
}
