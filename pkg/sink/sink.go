// Package sink writes commit records as newline-delimited JSON, optionally
// compressed. The compression codec is selected by the output file
// extension: .gz selects gzip, .lz4 selects lz4, anything else is plain.
package sink

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/githarvest/pkg/extract"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sink closed")

// json is the encoder for the hot NDJSON path.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultBufferSize is the bufio size in front of the codec.
const defaultBufferSize = 256 * 1024

// DefaultFlushEvery is the default record count between forced flushes.
const DefaultFlushEvery = 10000

// Options configures a Sink.
type Options struct {
	// FlushEvery forces a flush after this many records, bounding data loss
	// on abnormal exit. Zero means DefaultFlushEvery.
	FlushEvery int
}

// Sink is a goroutine-safe NDJSON writer. Each record is encoded to a
// buffer first and written whole, so readers of a truncated file only ever
// lose trailing records, never see half a record.
type Sink struct {
	mu         sync.Mutex
	file       *os.File
	codec      io.WriteCloser // nil when uncompressed
	buf        *bufio.Writer
	count      int64
	sinceFlush int
	flushEvery int
	closed     bool
}

// Create opens the output file, truncating any existing content.
func Create(path string, opts Options) (*Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	s := &Sink{
		file:       file,
		flushEvery: opts.FlushEvery,
	}

	if s.flushEvery <= 0 {
		s.flushEvery = DefaultFlushEvery
	}

	var w io.Writer = file

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(file)
		s.codec = gz
		w = gz
	case strings.HasSuffix(path, ".lz4"):
		lz := lz4.NewWriter(file)
		s.codec = lz
		w = lz
	}

	s.buf = bufio.NewWriterSize(w, defaultBufferSize)

	return s, nil
}

// Write encodes one record and appends it as a single NDJSON line.
func (s *Sink) Write(record *extract.CommitRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err = s.buf.Write(data)
	if err == nil {
		err = s.buf.WriteByte('\n')
	}

	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	s.count++
	s.sinceFlush++

	if s.sinceFlush >= s.flushEvery {
		return s.flushLocked()
	}

	return nil
}

// Flush pushes buffered data through the codec to the file.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	s.sinceFlush = 0

	err := s.buf.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	if flusher, ok := s.codec.(interface{ Flush() error }); ok {
		err = flusher.Flush()
		if err != nil {
			return fmt.Errorf("flush codec: %w", err)
		}
	}

	return nil
}

// Count returns the number of records written so far.
func (s *Sink) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// Close flushes and closes the codec and the file. Safe to call once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	err := s.buf.Flush()

	if s.codec != nil {
		err = errors.Join(err, s.codec.Close())
	}

	err = errors.Join(err, s.file.Close())
	if err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	return nil
}
