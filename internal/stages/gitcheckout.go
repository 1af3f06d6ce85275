package stages

import (
	"crypto/sha1" //nolint:gosec // content-addressed directory naming, not a security use
	"encoding/hex"
	"path/filepath"
)

// gitCheckoutDir derives a checkout directory name from a repository
// URL by hashing it, avoiding the aliasing a naive slash/dot
// normalisation (replace "/" with "_", strip ".git", "." with "-") would
// risk: two distinct repository URLs could otherwise collapse to the
// same directory. The first 12 hex characters of the SHA1 digest keep
// directory names short while remaining collision-resistant for the
// pipeline's scale.
func gitCheckoutDir(basePath, project, repositoryURL string) string {
	sum := sha1.Sum([]byte(repositoryURL))
	name := hex.EncodeToString(sum[:])[:12]
	return filepath.Join(basePath, project, "git", name)
}
