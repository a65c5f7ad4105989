package sink_test

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/githarvest/pkg/extract"
	"github.com/Sumatoshi-tech/githarvest/pkg/sink"
)

func sampleRecord(hash string) *extract.CommitRecord {
	return &extract.CommitRecord{
		Time:        "2024-03-01T12:00:00Z",
		Hash:        hash,
		Message:     "change things",
		Author:      "Ada",
		Repo:        "widgets",
		Org:         "acme",
		FileChanges: []extract.FileChange{},
	}
}

// readRecords decodes all NDJSON records from a (possibly compressed) file.
func readRecords(t *testing.T, path string) []extract.CommitRecord {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)

	defer file.Close()

	var reader io.Reader = file

	switch filepath.Ext(path) {
	case ".gz":
		gz, gzErr := gzip.NewReader(file)
		require.NoError(t, gzErr)

		defer gz.Close()

		reader = gz
	case ".lz4":
		reader = lz4.NewReader(file)
	}

	var records []extract.CommitRecord

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		var record extract.CommitRecord

		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))

		records = append(records, record)
	}

	require.NoError(t, scanner.Err())

	return records
}

func TestSinkPlainOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	require.NoError(t, s.Write(sampleRecord("aaa")))
	require.NoError(t, s.Write(sampleRecord("bbb")))
	assert.Equal(t, int64(2), s.Count())
	require.NoError(t, s.Close())

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "aaa", records[0].Hash)
	assert.Equal(t, "bbb", records[1].Hash)

	// Empty file_changes serializes as [], not null.
	assert.NotNil(t, records[0].FileChanges)
}

func TestSinkGzipOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json.gz")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	require.NoError(t, s.Write(sampleRecord("aaa")))
	require.NoError(t, s.Close())

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "acme", records[0].Org)
}

func TestSinkLz4Output(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json.lz4")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	require.NoError(t, s.Write(sampleRecord("ccc")))
	require.NoError(t, s.Close())

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "ccc", records[0].Hash)
}

func TestSinkFlushMakesRecordsVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	defer s.Close()

	require.NoError(t, s.Write(sampleRecord("aaa")))
	require.NoError(t, s.Flush())

	// Readable before Close: flushed records are durable.
	records := readRecords(t, path)
	require.Len(t, records, 1)
}

func TestSinkFlushEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")

	s, err := sink.Create(path, sink.Options{FlushEvery: 2})
	require.NoError(t, err)

	defer s.Close()

	require.NoError(t, s.Write(sampleRecord("aaa")))
	require.NoError(t, s.Write(sampleRecord("bbb")))

	// The second write crossed the threshold and forced a flush.
	records := readRecords(t, path)
	require.Len(t, records, 2)
}

func TestSinkWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // Idempotent.

	err = s.Write(sampleRecord("aaa"))
	require.ErrorIs(t, err, sink.ErrClosed)

	err = s.Flush()
	require.ErrorIs(t, err, sink.ErrClosed)
}

func TestSinkCreateBadPath(t *testing.T) {
	s, err := sink.Create("/nonexistent/dir/commits.json", sink.Options{})

	assert.Nil(t, s)
	require.Error(t, err)
}

func TestSinkConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.json")

	s, err := sink.Create(path, sink.Options{})
	require.NoError(t, err)

	const writers = 8

	const perWriter = 50

	var wg sync.WaitGroup

	for range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perWriter {
				assert.NoError(t, s.Write(sampleRecord("h")))
			}
		}()
	}

	wg.Wait()
	require.NoError(t, s.Close())

	records := readRecords(t, path)
	assert.Len(t, records, writers*perWriter)
	assert.Equal(t, int64(writers*perWriter), s.Count())
}
