package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DiscoverRepos returns the immediate subdirectories of parent that contain
// a .git entry, sorted by name for deterministic runs. A .git regular file
// (worktree or submodule gitlink) counts as a repository too.
func DiscoverRepos(parent string) ([]string, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("scan parent directory: %w", err)
	}

	var repos []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		candidate := filepath.Join(parent, entry.Name())

		_, statErr := os.Stat(filepath.Join(candidate, ".git"))
		if statErr != nil {
			continue
		}

		repos = append(repos, candidate)
	}

	sort.Strings(repos)

	return repos, nil
}

// DedupePaths resolves paths to absolute form and removes duplicates while
// preserving first-seen order.
func DedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	result := make([]string, 0, len(paths))

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}

		if seen[abs] {
			continue
		}

		seen[abs] = true
		result = append(result, abs)
	}

	return result
}
