package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeKind classifies a file change within a commit.
type ChangeKind string

// File change kinds. Type changes (e.g. file to symlink) count as Modify.
const (
	ChangeAdd    ChangeKind = "Add"
	ChangeDelete ChangeKind = "Delete"
	ChangeModify ChangeKind = "Modify"
	ChangeRename ChangeKind = "Rename"
	ChangeCopy   ChangeKind = "Copy"
)

// FileStat holds line and hunk statistics for one file within one commit.
// Line counts stay zero for binary files and pure renames.
type FileStat struct {
	Kind         ChangeKind
	Path         string // Path at this commit.
	OldPath      string // Prior path for renames/copies, "" otherwise.
	LinesAdded   int
	LinesDeleted int
	HunksAdded   int // Hunks containing only additions.
	HunksRemoved int // Hunks containing only deletions.
	HunksChanged int // Hunks containing both.
	Binary       bool
}

// statCollector accumulates per-file stats during a diff walk. Hunk
// classification is deferred until the hunk boundary so a hunk with both
// additions and deletions counts once as changed.
type statCollector struct {
	stats   []*FileStat
	current *FileStat
	hunkAdd int
	hunkDel int
	inHunk  bool
}

func (sc *statCollector) flushHunk() {
	if !sc.inHunk || sc.current == nil {
		return
	}

	switch {
	case sc.hunkAdd > 0 && sc.hunkDel > 0:
		sc.current.HunksChanged++
	case sc.hunkAdd > 0:
		sc.current.HunksAdded++
	case sc.hunkDel > 0:
		sc.current.HunksRemoved++
	}

	sc.hunkAdd = 0
	sc.hunkDel = 0
	sc.inHunk = false
}

func (sc *statCollector) beginFile(stat *FileStat) {
	sc.flushHunk()
	sc.current = stat
	sc.stats = append(sc.stats, stat)
}

func (sc *statCollector) beginHunk() {
	sc.flushHunk()
	sc.inHunk = true
}

func (sc *statCollector) addLine(line git2go.DiffLine) {
	if sc.current == nil {
		return
	}

	switch line.Origin {
	case git2go.DiffLineAddition:
		sc.current.LinesAdded++
		sc.hunkAdd++
	case git2go.DiffLineDeletion:
		sc.current.LinesDeleted++
		sc.hunkDel++
	case git2go.DiffLineContext, git2go.DiffLineContextEOFNL,
		git2go.DiffLineAddEOFNL, git2go.DiffLineDelEOFNL,
		git2go.DiffLineFileHdr, git2go.DiffLineHunkHdr, git2go.DiffLineBinary:
	}
}

// statFromDelta shapes a FileStat from a diff delta, or nil for delta types
// that do not represent a content change.
func statFromDelta(delta git2go.DiffDelta) *FileStat {
	stat := &FileStat{Binary: delta.Flags&git2go.DiffFlagBinary != 0}

	switch delta.Status {
	case git2go.DeltaAdded:
		stat.Kind = ChangeAdd
		stat.Path = delta.NewFile.Path
	case git2go.DeltaDeleted:
		stat.Kind = ChangeDelete
		stat.Path = delta.OldFile.Path
	case git2go.DeltaModified:
		stat.Kind = ChangeModify
		stat.Path = delta.NewFile.Path
	case git2go.DeltaTypeChange:
		stat.Kind = ChangeModify
		stat.Path = delta.NewFile.Path
	case git2go.DeltaRenamed:
		stat.Kind = ChangeRename
		stat.Path = delta.NewFile.Path
		stat.OldPath = delta.OldFile.Path
	case git2go.DeltaCopied:
		stat.Kind = ChangeCopy
		stat.Path = delta.NewFile.Path
		stat.OldPath = delta.OldFile.Path
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return nil
	}

	return stat
}

// CommitFileStats computes per-file change statistics for a commit by
// diffing against its first parent (or the empty tree for root commits).
// Diffing merge commits against the first parent matches
// git log --first-parent attribution; a clean merge yields no stats.
func CommitFileStats(repo *Repository, commit *Commit) ([]FileStat, error) {
	newTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	var oldTree *Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, parentErr
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
		defer oldTree.Free()

		// Identical trees mean a metadata-only commit; skip the diff.
		if oldTree.Hash() == newTree.Hash() {
			return nil, nil
		}
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	err = diff.FindRenames()
	if err != nil {
		return nil, err
	}

	collector := &statCollector{}

	err = diff.ForEach(func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		stat := statFromDelta(delta)
		if stat == nil {
			return nil, nil
		}

		collector.beginFile(stat)

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			collector.beginHunk()

			return func(line git2go.DiffLine) error {
				collector.addLine(line)

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("walk commit diff: %w", err)
	}

	collector.flushHunk()

	stats := make([]FileStat, 0, len(collector.stats))
	for _, stat := range collector.stats {
		stats = append(stats, *stat)
	}

	return stats, nil
}
