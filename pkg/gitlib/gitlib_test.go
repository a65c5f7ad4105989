package gitlib_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/githarvest/pkg/gitlib"
)

// testRepo wraps a fixture repository for integration testing.
type testRepo struct {
	t       *testing.T
	path    string
	native  *git2go.Repository
	cleanup func()
}

// newTestRepo creates a new fixture repository in a temp dir.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		cleanup: func() {
			repo.Free()
		},
	}
}

// createFile creates a file in the working directory.
func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	dir := filepath.Dir(path)

	if dir != tr.path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(tr.t, err)
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// deleteFile removes a file from the working directory.
func (tr *testRepo) deleteFile(name string) {
	tr.t.Helper()

	err := os.Remove(filepath.Join(tr.path, name))
	require.NoError(tr.t, err)
}

// renameFile moves a file within the working directory.
func (tr *testRepo) renameFile(oldName, newName string) {
	tr.t.Helper()

	newPath := filepath.Join(tr.path, newName)

	dir := filepath.Dir(newPath)
	if dir != tr.path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(tr.t, err)
	}

	err := os.Rename(filepath.Join(tr.path, oldName), newPath)
	require.NoError(tr.t, err)
}

// commit stages all changes (including deletions) and creates a commit.
func (tr *testRepo) commit(message string) gitlib.Hash {
	return tr.commitAt(message, time.Now())
}

// commitAt stages all changes and commits with the given author time.
func (tr *testRepo) commitAt(message string, when time.Time) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(tr.t, err)

	err = index.UpdateAll([]string{"*"}, nil)
	require.NoError(tr.t, err)

	err = index.Write()
	require.NoError(tr.t, err)

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  when,
	}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// mergeCommit creates a merge commit on HEAD with the first parent's tree,
// i.e. a clean merge that introduces no content changes of its own.
func (tr *testRepo) mergeCommit(message string, first, second gitlib.Hash) gitlib.Hash {
	tr.t.Helper()

	firstCommit, err := tr.native.LookupCommit(first.ToOid())
	require.NoError(tr.t, err)

	defer firstCommit.Free()

	secondCommit, err := tr.native.LookupCommit(second.ToOid())
	require.NoError(tr.t, err)

	defer secondCommit.Free()

	tree, err := firstCommit.Tree()
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Now(),
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, firstCommit, secondCommit)
	require.NoError(tr.t, err)

	return gitlib.HashFromOid(oid)
}

// sideCommit creates a commit on a side ref sharing the base commit's tree.
func (tr *testRepo) sideCommit(refName, message string, base gitlib.Hash) gitlib.Hash {
	tr.t.Helper()

	baseCommit, err := tr.native.LookupCommit(base.ToOid())
	require.NoError(tr.t, err)

	defer baseCommit.Free()

	tree, err := baseCommit.Tree()
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Side User",
		Email: "side@example.com",
		When:  time.Now(),
	}

	oid, err := tr.native.CreateCommit(refName, sig, sig, message, tree, baseCommit)
	require.NoError(tr.t, err)

	return gitlib.HashFromOid(oid)
}

func collectHashes(t *testing.T, iter *gitlib.CommitIter) []gitlib.Hash {
	t.Helper()

	var hashes []gitlib.Hash

	for {
		commit, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return hashes
		}

		require.NoError(t, err)

		hashes = append(hashes, commit.Hash())
		commit.Free()
	}
}

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("test.txt", "content")
	tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, tr.path, repo.Path())
	assert.NotNil(t, repo.Native())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepositoryHead(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("test.txt", "hello")
	expectedHash := tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, expectedHash, head)
}

func TestRemoteURL(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("test.txt", "hello")
	tr.commit("initial")

	_, err := tr.native.Remotes.Create("origin", "https://github.com/acme/widgets.git")
	require.NoError(t, err)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, "https://github.com/acme/widgets.git", repo.RemoteURL("origin"))
	assert.Empty(t, repo.RemoteURL("upstream"))
}

func TestLogOldestFirst(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("1.txt", "1")
	first := tr.commit("first")

	tr.createFile("2.txt", "2")
	second := tr.commit("second")

	tr.createFile("3.txt", "3")
	third := tr.commit("third")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{})
	require.NoError(t, err)

	hashes := collectHashes(t, iter)
	assert.Equal(t, []gitlib.Hash{first, second, third}, hashes)
}

func TestLogSinceUntil(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tr.createFile("1.txt", "1")
	tr.commitAt("first", base)

	tr.createFile("2.txt", "2")
	second := tr.commitAt("second", base.Add(24*time.Hour))

	tr.createFile("3.txt", "3")
	tr.commitAt("third", base.Add(48*time.Hour))

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	since := base.Add(12 * time.Hour)
	until := base.Add(36 * time.Hour)

	iter, err := repo.Log(&gitlib.LogOptions{Since: &since, Until: &until})
	require.NoError(t, err)

	hashes := collectHashes(t, iter)
	assert.Equal(t, []gitlib.Hash{second}, hashes)
}

func TestLogBranch(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("base.txt", "base")
	base := tr.commit("base")

	side := tr.sideCommit("refs/heads/side", "on side", base)

	tr.createFile("main.txt", "main")
	tr.commit("on main")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{Branch: "side"})
	require.NoError(t, err)

	hashes := collectHashes(t, iter)
	assert.Equal(t, []gitlib.Hash{base, side}, hashes)
}

func TestLogBranchNotFound(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	tr.commit("init")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{Branch: "does-not-exist"})

	assert.Nil(t, iter)
	require.ErrorIs(t, err, gitlib.ErrBranchNotFound)
}

func TestLogFirstParent(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("base.txt", "base")
	base := tr.commit("base")

	side := tr.sideCommit("refs/heads/side", "side work", base)

	tr.createFile("main.txt", "main")
	mainTip := tr.commit("main work")

	merge := tr.mergeCommit("merge side", mainTip, side)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{FirstParent: true})
	require.NoError(t, err)

	// The side branch is reachable only through the merge's second parent
	// and must not appear in a first-parent walk.
	hashes := collectHashes(t, iter)
	assert.Equal(t, []gitlib.Hash{base, mainTip, merge}, hashes)

	full, err := repo.Log(&gitlib.LogOptions{})
	require.NoError(t, err)

	assert.Len(t, collectHashes(t, full), 4)
}

func TestCommitIterNextAfterExhaustion(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("1.txt", "1")
	tr.commit("first")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{})
	require.NoError(t, err)

	collectHashes(t, iter)

	commit, err := iter.Next()

	assert.Nil(t, commit)
	require.ErrorIs(t, err, io.EOF)
}

func TestCommitIterCloseIsIdempotent(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("1.txt", "1")
	tr.commit("first")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{})
	require.NoError(t, err)

	collectHashes(t, iter)

	// Exhaustion frees the walk; further Close calls must be no-ops.
	iter.Close()
	iter.Close()
}

func TestCommitIsMerge(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	base := tr.commit("base")

	side := tr.sideCommit("refs/heads/side", "side", base)

	tr.createFile("b.txt", "b")
	mainTip := tr.commit("main work")

	merge := tr.mergeCommit("merge side", mainTip, side)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	mergeCommit, err := repo.LookupCommit(merge)
	require.NoError(t, err)

	defer mergeCommit.Free()

	assert.True(t, mergeCommit.IsMerge())
	assert.Equal(t, 2, mergeCommit.NumParents())

	baseCommit, err := repo.LookupCommit(base)
	require.NoError(t, err)

	defer baseCommit.Free()

	assert.False(t, baseCommit.IsMerge())
	assert.Equal(t, 0, baseCommit.NumParents())
}

func TestCommitFileStatsRootCommit(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("src/a.py", "one\ntwo\nthree\n")
	tr.createFile("README.md", "hello\n")
	hash := tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byPath := map[string]gitlib.FileStat{}
	for _, stat := range stats {
		byPath[stat.Path] = stat
	}

	require.Contains(t, byPath, "src/a.py")
	assert.Equal(t, gitlib.ChangeAdd, byPath["src/a.py"].Kind)
	assert.Equal(t, 3, byPath["src/a.py"].LinesAdded)
	assert.Equal(t, 0, byPath["src/a.py"].LinesDeleted)
	assert.Equal(t, 1, byPath["src/a.py"].HunksAdded)

	require.Contains(t, byPath, "README.md")
	assert.Equal(t, 1, byPath["README.md"].LinesAdded)
}

func TestCommitFileStatsModify(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("main.go", "alpha\nbeta\ngamma\n")
	tr.commit("initial")

	tr.createFile("main.go", "alpha\nBETA\ngamma\n")
	hash := tr.commit("edit beta")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, gitlib.ChangeModify, stats[0].Kind)
	assert.Equal(t, "main.go", stats[0].Path)
	assert.Empty(t, stats[0].OldPath)
	assert.Equal(t, 1, stats[0].LinesAdded)
	assert.Equal(t, 1, stats[0].LinesDeleted)
	assert.Equal(t, 1, stats[0].HunksChanged)
	assert.Equal(t, 0, stats[0].HunksAdded)
	assert.Equal(t, 0, stats[0].HunksRemoved)
}

func TestCommitFileStatsDelete(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("gone.txt", "a\nb\n")
	tr.commit("add")

	tr.deleteFile("gone.txt")
	hash := tr.commit("remove")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, gitlib.ChangeDelete, stats[0].Kind)
	assert.Equal(t, "gone.txt", stats[0].Path)
	assert.Equal(t, 2, stats[0].LinesDeleted)
	assert.Equal(t, 1, stats[0].HunksRemoved)
}

func TestCommitFileStatsRename(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("old/path.txt", "stable content\nmore lines\nthird line\n")
	tr.commit("add")

	tr.renameFile("old/path.txt", "new/path.txt")
	hash := tr.commit("rename")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, gitlib.ChangeRename, stats[0].Kind)
	assert.Equal(t, "new/path.txt", stats[0].Path)
	assert.Equal(t, "old/path.txt", stats[0].OldPath)
	assert.Equal(t, 0, stats[0].LinesAdded)
	assert.Equal(t, 0, stats[0].LinesDeleted)
}

func TestCommitFileStatsBinary(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("logo.png", "\x89PNG\x0d\x0a\x1a\x0a\x00\x00\x01\x02\x03\x00payload\x00")
	hash := tr.commit("add image")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, gitlib.ChangeAdd, stats[0].Kind)
	assert.Equal(t, "logo.png", stats[0].Path)
	assert.True(t, stats[0].Binary)
	assert.Equal(t, 0, stats[0].LinesAdded)
	assert.Equal(t, 0, stats[0].LinesDeleted)
	assert.Equal(t, 0, stats[0].HunksAdded+stats[0].HunksRemoved+stats[0].HunksChanged)
}

func TestCommitFileStatsCleanMerge(t *testing.T) {
	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.txt", "a")
	base := tr.commit("base")

	side := tr.sideCommit("refs/heads/side", "side", base)

	tr.createFile("b.txt", "b")
	mainTip := tr.commit("main work")

	merge := tr.mergeCommit("merge side", mainTip, side)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	commit, err := repo.LookupCommit(merge)
	require.NoError(t, err)

	defer commit.Free()

	// Merge tree equals the first parent's tree, so no file changes.
	stats, err := gitlib.CommitFileStats(repo, commit)
	require.NoError(t, err)
	assert.Empty(t, stats)
}
