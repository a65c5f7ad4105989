// Package extract implements the commit extractor: it walks the history of
// one or more local git repositories and shapes one normalized record per
// commit, ready for bulk loading into a columnar analytic store.
package extract

import (
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/githarvest/pkg/gitlib"
)

// CommitRecord is the output shape for one commit. Field names and types are
// a compatibility contract with the downstream loader; renaming or retyping
// any field breaks consumers.
type CommitRecord struct {
	Time          string       `json:"time"`
	Hash          string       `json:"hash"`
	Message       string       `json:"message"`
	Author        string       `json:"author"`
	Merge         bool         `json:"merge"`
	Repo          string       `json:"repo"`
	Org           string       `json:"org"`
	FilesAdded    int          `json:"files_added"`
	FilesDeleted  int          `json:"files_deleted"`
	FilesRenamed  int          `json:"files_renamed"`
	FilesModified int          `json:"files_modified"`
	LinesAdded    int          `json:"lines_added"`
	LinesDeleted  int          `json:"lines_deleted"`
	HunksAdded    int          `json:"hunks_added"`
	HunksRemoved  int          `json:"hunks_removed"`
	HunksChanged  int          `json:"hunks_changed"`
	FileChanges   []FileChange `json:"file_changes"`
}

// FileChange is the per-file entry within a CommitRecord.
type FileChange struct {
	ChangeType    string  `json:"change_type"`
	Path          string  `json:"path"`
	OldPath       *string `json:"old_path"`
	FileExtension string  `json:"file_extension"`
	Language      string  `json:"language,omitempty"`
	LinesAdded    int     `json:"lines_added"`
	LinesDeleted  int     `json:"lines_deleted"`
	HunksAdded    int     `json:"hunks_added"`
	HunksRemoved  int     `json:"hunks_removed"`
	HunksChanged  int     `json:"hunks_changed"`
}

// Changes returns the total churn for this file change.
func (fc FileChange) Changes() int {
	return fc.LinesAdded + fc.LinesDeleted
}

// fileChangeFromStat shapes a FileChange from gitlib statistics.
func fileChangeFromStat(stat gitlib.FileStat) FileChange {
	fc := FileChange{
		ChangeType:    string(stat.Kind),
		Path:          stat.Path,
		FileExtension: FileSuffix(stat.Path),
		Language:      enry.GetLanguage(baseName(stat.Path), nil),
		LinesAdded:    stat.LinesAdded,
		LinesDeleted:  stat.LinesDeleted,
		HunksAdded:    stat.HunksAdded,
		HunksRemoved:  stat.HunksRemoved,
		HunksChanged:  stat.HunksChanged,
	}

	if stat.OldPath != "" && stat.OldPath != stat.Path {
		oldPath := stat.OldPath
		fc.OldPath = &oldPath
	}

	return fc
}

// accumulate folds a file change into the record's per-commit totals.
func (cr *CommitRecord) accumulate(fc FileChange) {
	switch gitlib.ChangeKind(fc.ChangeType) {
	case gitlib.ChangeAdd:
		cr.FilesAdded++
	case gitlib.ChangeDelete:
		cr.FilesDeleted++
	case gitlib.ChangeRename:
		cr.FilesRenamed++
	case gitlib.ChangeModify, gitlib.ChangeCopy:
		cr.FilesModified++
	}

	cr.LinesAdded += fc.LinesAdded
	cr.LinesDeleted += fc.LinesDeleted
	cr.HunksAdded += fc.HunksAdded
	cr.HunksRemoved += fc.HunksRemoved
	cr.HunksChanged += fc.HunksChanged
}

// FileSuffix returns the path suffix including the dot ("a/b.py" -> ".py"),
// or "" when the file name has no dot.
func FileSuffix(path string) string {
	name := baseName(path)

	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return ""
	}

	return name[idx:]
}

// ExtensionOf returns the file extension without the dot, case preserved,
// or "" when the file name has no dot.
func ExtensionOf(path string) string {
	suffix := FileSuffix(path)
	if suffix == "" {
		return ""
	}

	return suffix[1:]
}

// FirstDirectory returns the first '/'-delimited segment of the path.
// The second return is false for root-level files, which have no directory.
func FirstDirectory(path string) (string, bool) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return "", false
	}

	return segments[0], true
}

// SecondDirectory returns the second '/'-delimited directory segment of the
// path, or false when the path is not nested that deep.
func SecondDirectory(path string) (string, bool) {
	segments := strings.Split(path, "/")
	if len(segments) < 3 {
		return "", false
	}

	return segments[1], true
}

func baseName(path string) string {
	idx := strings.LastIndexByte(path, '/')

	return path[idx+1:]
}
