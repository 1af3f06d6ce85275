// Package producer is the one-shot seed job: fetches the
// upstream release feed, upserts versions rows keyed on version
// uniqueness, and publishes download.http for anything not yet
// downloaded.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eluceo/jacobine/internal/config"
	"github.com/eluceo/jacobine/internal/dbgateway"
	"github.com/eluceo/jacobine/internal/domain"
	"github.com/eluceo/jacobine/internal/logger"
)

// Publisher is the narrow slice of *queue.Client the producer needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload any) error
}

// Fetcher is the narrow slice of *fetcher.Fetcher the producer needs.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// bookkeepingKeys are feed keys that are non-release metadata to skip
// rather than treat as a branch.
var bookkeepingKeys = map[string]bool{
	"latest_stable":     true,
	"latest_lts":        true,
	"latest_deprecated": true,
}

// feedBranch is one branch entry of the upstream JSON release feed. The
// feed is a map of branch name to branch entry, with the bookkeeping keys
// above mixed into the same top-level object.
type feedBranch struct {
	Releases map[string]feedRelease `json:"releases"`
}

type feedRelease struct {
	Version     string `json:"version"`
	Date        string `json:"date"`
	ReleaseType string `json:"type"`
	Tar         struct {
		URL  string `json:"url"`
		MD5  string `json:"md5"`
		SHA1 string `json:"sha1"`
	} `json:"tar"`
	Zip struct {
		URL  string `json:"url"`
		MD5  string `json:"md5"`
		SHA1 string `json:"sha1"`
	} `json:"zip"`
}

// Producer runs the one-shot feed ingest.
type Producer struct {
	db      *dbgateway.Gateway
	queue   Publisher
	fetch   Fetcher
	log     logger.Logger
	project config.Project
}

// New builds a Producer.
func New(db *dbgateway.Gateway, queue Publisher, fetch Fetcher, log logger.Logger, project config.Project) *Producer {
	return &Producer{db: db, queue: queue, fetch: fetch, log: log, project: project}
}

// Run fetches the feed and processes every branch entry once.
func (p *Producer) Run(ctx context.Context) error {
	body, err := p.fetch.Get(ctx, p.project.FeedURL)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode feed: %w", err)
	}

	for branchName, rawBranch := range raw {
		if bookkeepingKeys[branchName] {
			continue
		}

		var branch feedBranch
		if err := json.Unmarshal(rawBranch, &branch); err != nil {
			p.log.Warn("skipping unparseable branch entry", logger.String("branch", branchName), logger.Error(err))
			continue
		}
		if len(branch.Releases) == 0 {
			continue
		}

		for _, release := range branch.Releases {
			if err := p.processRelease(ctx, branchName, release); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Producer) processRelease(ctx context.Context, branch string, release feedRelease) error {
	if strings.Contains(release.Tar.URL, "snapshot") {
		return nil
	}
	if release.Version == "" {
		return nil
	}

	existing, err := p.findByVersion(ctx, release.Version)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.Downloaded {
			return nil
		}
		return p.publishDownload(ctx, existing.ID)
	}

	id, err := p.insertVersion(ctx, branch, release)
	if err != nil {
		return err
	}
	return p.publishDownload(ctx, id)
}

func (p *Producer) findByVersion(ctx context.Context, version string) (*domain.Version, error) {
	rows, err := p.db.Select(ctx, "versions", nil, map[string]any{
		"project": p.project.Name,
		"version": version,
	}, dbgateway.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	v := rowFromColumns(rows[0])
	return &v, nil
}

func (p *Producer) insertVersion(ctx context.Context, branch string, release feedRelease) (int64, error) {
	v := domain.Version{
		Project:         p.project.Name,
		Branch:          branch,
		Version:         release.Version,
		Type:            release.ReleaseType,
		URLTar:          release.Tar.URL,
		URLZip:          release.Zip.URL,
		ChecksumTarMD5:  release.Tar.MD5,
		ChecksumTarSHA1: release.Tar.SHA1,
		ChecksumZipMD5:  release.Zip.MD5,
		ChecksumZipSHA1: release.Zip.SHA1,
		Downloaded:      false,
	}

	idStr, err := p.db.Insert(ctx, "versions", v.Columns())
	if err != nil {
		return 0, err
	}
	var id int64
	fmt.Sscanf(idStr, "%d", &id)
	return id, nil
}

func (p *Producer) publishDownload(ctx context.Context, versionID int64) error {
	env := domain.DownloadHTTPEnvelope{
		Project:         p.project.Name,
		VersionID:       versionID,
		FilenamePrefix:  strings.ToLower(p.project.Name) + "_",
		FilenamePostfix: ".tar.gz",
	}
	return p.queue.Publish(ctx, p.project.RabbitMQExchange, string(domain.RoutingDownloadHTTP), env)
}

func rowFromColumns(row map[string]any) domain.Version {
	v := domain.Version{}
	if id, ok := row["id"]; ok {
		v.ID = toInt64(id)
	}
	if downloaded, ok := row["downloaded"]; ok {
		v.Downloaded = toInt64(downloaded) != 0
	}
	return v
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
