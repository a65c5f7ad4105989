package gitlib

import (
	"errors"
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrBranchNotFound is returned when the requested branch does not exist.
var ErrBranchNotFound = errors.New("branch not found")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// BranchTip returns the tip commit of a local branch.
func (r *Repository) BranchTip(name string) (Hash, error) {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	defer branch.Free()

	return HashFromOid(branch.Target()), nil
}

// RemoteURL returns the URL of the named remote, or "" if it does not exist.
func (r *Repository) RemoteURL(name string) string {
	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return ""
	}
	defer remote.Free()

	return remote.Url()
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LogOptions configures the commit log iteration.
type LogOptions struct {
	Since       *time.Time // Only include commits authored at or after this time.
	Until       *time.Time // Only include commits authored at or before this time.
	Branch      string     // Walk from this local branch instead of HEAD.
	FirstParent bool       // Follow only first parent (git log --first-parent).
}

// Log returns a commit iterator over the selected branch history.
// Commits are yielded oldest first, in reverse chronological-topological
// order, which is stable for a given repository state.
func (r *Repository) Log(opts *LogOptions) (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	var tip Hash

	if opts != nil && opts.Branch != "" {
		tip, err = r.BranchTip(opts.Branch)
	} else {
		tip, err = r.Head()
	}

	if err != nil {
		walk.Free()

		return nil, err
	}

	err = walk.Push(tip.ToOid())
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push tip to revwalk: %w", err)
	}

	// Reverse gives oldest-first output; topological keeps parents before
	// children so downstream incremental loads see a stable order.
	walk.Sorting(git2go.SortTime | git2go.SortTopological | git2go.SortReverse)

	if opts != nil && opts.FirstParent {
		walk.SimplifyFirstParent()
	}

	iter := &CommitIter{walk: walk, repo: r}

	if opts != nil {
		iter.since = opts.Since
		iter.until = opts.Until
	}

	return iter, nil
}

// DiffTreeToTree computes the diff between two trees. Either tree may be nil,
// which diffs against the empty tree.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
