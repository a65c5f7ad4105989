package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/githarvest/pkg/extract"
)

// ErrUnknownFormat is returned for unsupported summary formats.
var ErrUnknownFormat = errors.New("unknown summary format")

// summaryRow is the serializable form of one repository's outcome.
type summaryRow struct {
	Org      string `json:"org"      yaml:"org"`
	Repo     string `json:"repo"     yaml:"repo"`
	Path     string `json:"path"     yaml:"path"`
	Commits  int    `json:"commits"  yaml:"commits"`
	Duration string `json:"duration" yaml:"duration"`
	Status   string `json:"status"   yaml:"status"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// RenderSummary writes the per-repository run summary in the requested
// format: a colorized table for humans, or json/yaml for scripting.
func RenderSummary(w io.Writer, results []extract.RepoResult, format string, noColor bool) error {
	rows := make([]summaryRow, 0, len(results))

	for _, result := range results {
		row := summaryRow{
			Org:      result.Org,
			Repo:     result.Repo,
			Path:     result.Path,
			Commits:  result.Commits,
			Duration: result.Duration.Round(time.Millisecond).String(),
			Status:   statusOK,
		}

		if result.Failed() {
			row.Status = statusFailed
			row.Error = result.Err.Error()
		}

		rows = append(rows, row)
	}

	switch format {
	case "table", "":
		renderTable(w, rows, noColor)

		return nil
	case "json":
		data, err := jsoniter.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}

		fmt.Fprintln(w, string(data))

		return nil
	case "yaml":
		data, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}

		fmt.Fprint(w, string(data))

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func renderTable(w io.Writer, rows []summaryRow, noColor bool) {
	okStatus := color.New(color.FgGreen).Sprint(statusOK)
	failedStatus := color.New(color.FgRed).Sprint(statusFailed)

	if noColor {
		okStatus = statusOK
		failedStatus = statusFailed
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Org", "Repo", "Commits", "Duration", "Status", "Error"})

	for _, row := range rows {
		status := okStatus
		if row.Status == statusFailed {
			status = failedStatus
		}

		tw.AppendRow(table.Row{
			row.Org,
			row.Repo,
			humanize.Comma(int64(row.Commits)),
			row.Duration,
			status,
			row.Error,
		})
	}

	tw.Render()
}
