package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/githarvest/pkg/gitlib"
)

// Sentinel errors for the extraction taxonomy. ErrNotRepository is a
// configuration error reported before any extraction work; ErrHistoryRead
// wraps failures during the history walk.
var (
	ErrNotRepository = errors.New("not a git repository")
	ErrHistoryRead   = errors.New("history read failed")
)

// defaultRemote is the remote used for provenance inference.
const defaultRemote = "origin"

// Options configures a single extraction pass.
type Options struct {
	Since       *time.Time // Only commits authored at or after this time.
	Until       *time.Time // Only commits authored at or before this time.
	Branch      string     // Walk this local branch instead of HEAD.
	FirstParent bool       // Follow only the first parent of merges.
}

// Pass is one finite, single-pass traversal of a repository's filtered
// history. It yields records oldest first and is not restartable; open a new
// Pass to traverse again.
type Pass struct {
	repo     *gitlib.Repository
	iter     *gitlib.CommitIter
	org      string
	repoName string
}

// NewPass opens the repository and prepares the history walk. Invalid paths
// are reported as ErrNotRepository before any record is produced.
func NewPass(path string, opts Options) (*Pass, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}

	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}

	iter, err := repo.Log(&gitlib.LogOptions{
		Since:       opts.Since,
		Until:       opts.Until,
		Branch:      opts.Branch,
		FirstParent: opts.FirstParent,
	})
	if err != nil {
		repo.Free()

		return nil, fmt.Errorf("open history of %s: %w", path, err)
	}

	org, repoName := InferProvenance(repo.RemoteURL(defaultRemote), path)

	return &Pass{
		repo:     repo,
		iter:     iter,
		org:      org,
		repoName: repoName,
	}, nil
}

// Org returns the inferred organization tag.
func (p *Pass) Org() string { return p.org }

// Repo returns the inferred repository tag.
func (p *Pass) Repo() string { return p.repoName }

// Next returns the record for the next commit in the walk, or io.EOF when
// the history is exhausted. Mid-walk failures are wrapped as ErrHistoryRead.
func (p *Pass) Next() (*CommitRecord, error) {
	commit, err := p.iter.Next()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryRead, err)
	}

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(p.repo, commit)
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s: %v", ErrHistoryRead, commit.Hash(), err)
	}

	record := &CommitRecord{
		Time:        commit.Author().When.Format(time.RFC3339),
		Hash:        commit.Hash().String(),
		Message:     strings.TrimSpace(commit.Message()),
		Author:      commit.Author().Name,
		Merge:       commit.IsMerge(),
		Repo:        p.repoName,
		Org:         p.org,
		FileChanges: make([]FileChange, 0, len(stats)),
	}

	for _, stat := range stats {
		fc := fileChangeFromStat(stat)
		record.FileChanges = append(record.FileChanges, fc)
		record.accumulate(fc)
	}

	return record, nil
}

// Close releases the repository handle and walker.
func (p *Pass) Close() {
	if p.iter != nil {
		p.iter.Close()
		p.iter = nil
	}

	if p.repo != nil {
		p.repo.Free()
		p.repo = nil
	}
}
