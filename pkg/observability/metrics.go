package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal     = "githarvest.commits.total"
	metricFileChangesTotal = "githarvest.file_changes.total"
	metricRepoDuration     = "githarvest.repo.duration.seconds"
	metricRepoFailures     = "githarvest.repo.failures.total"

	attrOrg  = "org"
	attrRepo = "repo"
)

// repoDurationBoundaries covers sub-second toy repos through multi-minute
// monorepo extractions.
var repoDurationBoundaries = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800}

// ExtractionMetrics holds the OTel instruments for the extraction pipeline.
// A nil receiver is valid and records nothing.
type ExtractionMetrics struct {
	commitsTotal     metric.Int64Counter
	fileChangesTotal metric.Int64Counter
	repoDuration     metric.Float64Histogram
	repoFailures     metric.Int64Counter
}

// NewExtractionMetrics creates the extraction instruments from the given meter.
func NewExtractionMetrics(mt metric.Meter) (*ExtractionMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Total number of commits extracted"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	fileChanges, err := mt.Int64Counter(metricFileChangesTotal,
		metric.WithDescription("Total number of file changes extracted"),
		metric.WithUnit("{file_change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileChangesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRepoDuration,
		metric.WithDescription("Per-repository extraction duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(repoDurationBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRepoDuration, err)
	}

	failures, err := mt.Int64Counter(metricRepoFailures,
		metric.WithDescription("Total number of repositories that failed extraction"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRepoFailures, err)
	}

	return &ExtractionMetrics{
		commitsTotal:     commits,
		fileChangesTotal: fileChanges,
		repoDuration:     duration,
		repoFailures:     failures,
	}, nil
}

// RecordCommit records one extracted commit and its file change count.
func (em *ExtractionMetrics) RecordCommit(ctx context.Context, org, repo string, fileChanges int) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOrg, org),
		attribute.String(attrRepo, repo),
	)

	em.commitsTotal.Add(ctx, 1, attrs)
	em.fileChangesTotal.Add(ctx, int64(fileChanges), attrs)
}

// RecordRepo records the outcome of one repository's extraction pass.
func (em *ExtractionMetrics) RecordRepo(ctx context.Context, org, repo string, duration time.Duration, failed bool) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOrg, org),
		attribute.String(attrRepo, repo),
	)

	em.repoDuration.Record(ctx, duration.Seconds(), attrs)

	if failed {
		em.repoFailures.Add(ctx, 1, attrs)
	}
}
