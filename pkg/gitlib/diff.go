package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// FindRenames runs libgit2 rename detection, rewriting add/delete pairs
// into rename deltas.
func (d *Diff) FindRenames() error {
	opts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return fmt.Errorf("get diff find options: %w", err)
	}

	opts.Flags = git2go.DiffFindRenames

	err = d.diff.FindSimilar(&opts)
	if err != nil {
		return fmt.Errorf("find renames: %w", err)
	}

	return nil
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	numDeltas, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return numDeltas, nil
}

// ForEach iterates over the diff with callbacks for files, hunks, and lines.
func (d *Diff) ForEach(
	fileCallback git2go.DiffForEachFileCallback,
	detail git2go.DiffDetail,
) error {
	err := d.diff.ForEach(fileCallback, detail)
	if err != nil {
		return fmt.Errorf("diff foreach: %w", err)
	}

	return nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff == nil {
		return
	}

	// Free errors are non-actionable in cleanup.
	_ = d.diff.Free()
	d.diff = nil
}
