// Package cli renders epochs, statistics, and catalog entries for
// terminal use.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hyperjump/nemuri/internal/catalog"
	"github.com/hyperjump/nemuri/internal/models"
	"github.com/hyperjump/nemuri/internal/stats"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is compact human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputTable is an aligned table for wide terminals.
	OutputTable OutputFormat = "table"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputTable, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, table, or json", s)
	}
}

// WriteEpochs writes the epoch sequence of rater to w in the given format.
func WriteEpochs(w io.Writer, rater string, epochs []models.EpochView, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"rater": rater, "epochs": epochs})
	case OutputTable:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("rater: %s", rater)
		t.AppendHeader(table.Row{"#", "start", "end", "stage"})
		for i, ep := range epochs {
			t.AppendRow(table.Row{i + 1, FormatClock(ep.StartTime), FormatClock(ep.EndTime), ep.Stage})
		}
		t.Render()
		return nil
	default:
		fmt.Fprintf(w, "rater: %s (%d epochs)\n", rater, len(epochs))
		for _, ep := range epochs {
			fmt.Fprintf(w, "%s - %s  %s\n", FormatClock(ep.StartTime), FormatClock(ep.EndTime), ep.Stage)
		}
		return nil
	}
}

// WriteSummary writes sleep statistics to w in the given format.
func WriteSummary(w io.Writer, sum *stats.Summary, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, sum)
	case OutputTable:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("rater: %s", sum.Rater)
		t.AppendHeader(table.Row{"stage", "epochs", "seconds"})
		for _, ss := range sum.Stages {
			t.AppendRow(table.Row{ss.Stage, ss.Epochs, ss.Seconds})
		}
		t.AppendFooter(table.Row{"total", sum.TotalEpochs, sum.RecordingSeconds})
		t.Render()
		fmt.Fprintf(w, "sleep: %s of %s (efficiency %.1f%%), %d transitions\n",
			FormatClock(sum.SleepSeconds), FormatClock(sum.RecordingSeconds),
			sum.SleepEfficiency*100, sum.Transitions)
		return nil
	default:
		fmt.Fprintf(w, "rater:             %s\n", sum.Rater)
		fmt.Fprintf(w, "epochs:            %d\n", sum.TotalEpochs)
		fmt.Fprintf(w, "recording:         %s\n", FormatClock(sum.RecordingSeconds))
		fmt.Fprintf(w, "sleep:             %s\n", FormatClock(sum.SleepSeconds))
		fmt.Fprintf(w, "sleep_efficiency:  %.1f%%\n", sum.SleepEfficiency*100)
		if sum.SleepOnsetSec >= 0 {
			fmt.Fprintf(w, "sleep_onset:       %s\n", FormatClock(sum.SleepOnsetSec))
		}
		fmt.Fprintf(w, "transitions:       %d\n", sum.Transitions)
		for _, ss := range sum.Stages {
			fmt.Fprintf(w, "  %-10s %5d epochs  %s\n", ss.Stage, ss.Epochs, FormatClock(ss.Seconds))
		}
		return nil
	}
}

// WriteCatalog writes catalog entries to w in the given format.
func WriteCatalog(w io.Writer, entries []*catalog.Entry, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"documents": entries})
	case OutputTable:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"rater", "epochs", "scored", "path"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Rater, e.EpochCount, FormatClock(e.ScoredSeconds), e.Path})
		}
		t.Render()
		return nil
	default:
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %d epochs  %s  %s\n", e.Rater, e.EpochCount, FormatClock(e.ScoredSeconds), e.Path)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatClock renders seconds as hh:mm:ss.
func FormatClock(seconds int) string {
	neg := ""
	if seconds < 0 {
		neg = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", neg, seconds/3600, (seconds/60)%60, seconds%60)
}
