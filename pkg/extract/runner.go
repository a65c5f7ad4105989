package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/githarvest/pkg/observability"
)

// ErrInterrupted marks repositories whose extraction was cut short by a stop
// signal. Records written before the interruption are flushed and valid.
var ErrInterrupted = errors.New("extraction interrupted")

// RecordWriter is the output sink contract. Write must be safe for
// concurrent use and must emit each record atomically.
type RecordWriter interface {
	Write(record *CommitRecord) error
	Flush() error
}

// RepoResult is the tagged outcome of one repository's extraction pass.
// A nil Err means the history was fully extracted.
type RepoResult struct {
	Path     string
	Org      string
	Repo     string
	Commits  int
	Duration time.Duration
	Err      error
}

// Failed reports whether the repository could not be fully extracted.
func (rr RepoResult) Failed() bool {
	return rr.Err != nil
}

// Runner extracts multiple repositories with a fixed worker pool. Each
// repository is traversed sequentially by exactly one worker; the sink is
// the only shared resource. A failing repository does not abort the run,
// but a sink write failure does.
type Runner struct {
	Options Options
	Workers int // 0 means one worker per CPU.
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.ExtractionMetrics
}

// Run extracts every repository and returns one result per input path, in
// input order. The context cancels the run between commits.
func (r *Runner) Run(ctx context.Context, paths []string, out RecordWriter) []RepoResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]RepoResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobs {
				results[idx] = r.extractOne(ctx, paths[idx], out, cancel)
			}
		}()
	}

	for idx := range paths {
		jobs <- idx
	}

	close(jobs)
	wg.Wait()

	return results
}

// extractOne runs a single repository pass. cancelRun is invoked on sink
// write failures, which are fatal for the whole run.
func (r *Runner) extractOne(ctx context.Context, path string, out RecordWriter, cancelRun context.CancelFunc) RepoResult {
	start := time.Now()
	log := r.logger()

	ctx, span := r.tracer().Start(ctx, "extract.repository")
	defer span.End()

	result := RepoResult{Path: path}

	pass, err := NewPass(path, r.Options)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)

		log.Error("skipping repository", "path", path, "error", err)
		r.Metrics.RecordRepo(ctx, result.Org, result.Repo, result.Duration, true)

		return result
	}
	defer pass.Close()

	result.Org = pass.Org()
	result.Repo = pass.Repo()

	log.Info("extracting repository", "org", result.Org, "repo", result.Repo, "path", path)

	result.Err = r.drainPass(ctx, pass, out, &result, cancelRun)

	// Flush what was written so far even when the pass failed; already
	// emitted records for this repository remain valid.
	flushErr := out.Flush()
	if flushErr != nil && result.Err == nil {
		result.Err = fmt.Errorf("flush output: %w", flushErr)

		cancelRun()
	}

	result.Duration = time.Since(start)
	r.Metrics.RecordRepo(ctx, result.Org, result.Repo, result.Duration, result.Failed())

	if result.Failed() {
		log.Error("repository extraction failed",
			"org", result.Org, "repo", result.Repo,
			"commits", result.Commits, "error", result.Err)
	} else {
		log.Info("repository extracted",
			"org", result.Org, "repo", result.Repo,
			"commits", humanize.Comma(int64(result.Commits)),
			"duration", result.Duration.Round(time.Millisecond))
	}

	return result
}

func (r *Runner) drainPass(ctx context.Context, pass *Pass, out RecordWriter, result *RepoResult, cancelRun context.CancelFunc) error {
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}

		record, err := pass.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		err = out.Write(record)
		if err != nil {
			cancelRun()

			return fmt.Errorf("write output: %w", err)
		}

		result.Commits++
		r.Metrics.RecordCommit(ctx, result.Org, result.Repo, len(record.FileChanges))
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}

	return nooptrace.NewTracerProvider().Tracer("githarvest")
}
