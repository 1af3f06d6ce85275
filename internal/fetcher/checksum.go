package fetcher

import (
	"crypto/md5"  //nolint:gosec // integrity check against upstream-published digests, not a security boundary
	"crypto/sha1" //nolint:gosec // same
	"encoding/hex"
	"io"
	"os"

	"github.com/eluceo/jacobine/internal/pipelineerr"
)

// VerifyChecksums confirms path's MD5 and SHA1 digests match the values
// the upstream feed published for it. Either check can be skipped by
// passing an empty expected value. A mismatch or unreadable file
// surfaces as a FetchError — the Download.HTTP handler rejects the
// message without requeue, since a re-download of the same URL would
// only reproduce the same corrupt bytes.
func VerifyChecksums(path, expectedMD5, expectedSHA1 string) error {
	md5Sum, sha1Sum, err := digestFile(path)
	if err != nil {
		return pipelineerr.NewFetchError(path, "read file for checksum", err)
	}

	if expectedMD5 != "" && md5Sum != expectedMD5 {
		return pipelineerr.NewFetchError(path, "md5 checksum mismatch", nil)
	}
	if expectedSHA1 != "" && sha1Sum != expectedSHA1 {
		return pipelineerr.NewFetchError(path, "sha1 checksum mismatch", nil)
	}
	return nil
}

func digestFile(path string) (md5Hex, sha1Hex string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	md5Hash := md5.New()
	sha1Hash := sha1.New()

	if _, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash), f); err != nil {
		return "", "", err
	}

	return hex.EncodeToString(md5Hash.Sum(nil)), hex.EncodeToString(sha1Hash.Sum(nil)), nil
}
