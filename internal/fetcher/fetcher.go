// Package fetcher is the HTTP Fetcher: a buffered GET used
// by the producer to pull the upstream release feed, and a
// streaming download-to-disk used by the Download.HTTP stage. TLS
// verification is disabled on both — integrity of a downloaded archive
// is established by comparing its MD5/SHA1 against the upstream feed's
// published checksums, not by the certificate chain.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/eluceo/jacobine/internal/pipelineerr"
)

// Fetcher issues GET requests against two distinct timeout budgets: a
// short one for buffered JSON/text fetches, and a long one for streaming
// archive downloads.
type Fetcher struct {
	requestClient  *http.Client
	downloadClient *http.Client
}

// New builds a Fetcher. requestTimeout bounds the buffered Get calls;
// downloadTimeout bounds DownloadToFile calls.
func New(requestTimeout, downloadTimeout time.Duration) *Fetcher {
	return &Fetcher{
		requestClient:  newClient(requestTimeout),
		downloadClient: newClient(downloadTimeout),
	}
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // see package doc
		},
	}
}

// Get issues a buffered GET against url and returns the full response
// body. Used by the producer to fetch the upstream release feed.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pipelineerr.NewFetchError(url, "build request", err)
	}

	resp, err := f.requestClient.Do(req)
	if err != nil {
		return nil, pipelineerr.NewFetchError(url, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pipelineerr.NewFetchError(url, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipelineerr.NewFetchError(url, "read response body", err)
	}
	return body, nil
}

// DownloadToFile streams url's response body to destPath, creating
// (or truncating) the destination file. The response is never buffered
// in memory — archives can run to hundreds of megabytes.
func (f *Fetcher) DownloadToFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pipelineerr.NewFetchError(url, "build request", err)
	}

	resp, err := f.downloadClient.Do(req)
	if err != nil {
		return pipelineerr.NewFetchError(url, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pipelineerr.NewFetchError(url, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return pipelineerr.NewFetchError(url, fmt.Sprintf("create %s", destPath), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return pipelineerr.NewFetchError(url, fmt.Sprintf("write %s", destPath), err)
	}
	return nil
}
