package extract

import (
	"path/filepath"
	"regexp"
	"strings"
)

// unknownOrg is used when no organization can be inferred.
const unknownOrg = "unknown"

// remotePatterns match the org/repo pair in the remote URL forms git emits
// for the common hosts, e.g. https://github.com/org/repo.git and
// git@github.com:org/repo.
var remotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
	regexp.MustCompile(`gitlab\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
	regexp.MustCompile(`bitbucket\.org[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
}

// InferProvenance derives the (org, repo) tags for a repository from its
// remote URL, falling back to the local path: the directory name becomes the
// repo and its parent directory the org.
func InferProvenance(remoteURL, path string) (org, repo string) {
	if remoteURL != "" {
		trimmed := strings.TrimSuffix(strings.TrimRight(remoteURL, "/"), ".git")

		for _, pattern := range remotePatterns {
			match := pattern.FindStringSubmatch(trimmed)
			if match != nil {
				return match[1], match[2]
			}
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	repo = filepath.Base(abs)

	parent := filepath.Dir(abs)
	if parent == "." || parent == string(filepath.Separator) {
		return unknownOrg, repo
	}

	return filepath.Base(parent), repo
}
