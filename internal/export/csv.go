// Package export writes epoch sequences and sleep statistics to CSV and
// XLSX for analysis outside the viewer.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/nemuri/internal/models"
	"github.com/hyperjump/nemuri/internal/stats"
)

// WriteEpochsCSV writes one row per epoch: start_time, end_time, stage.
func WriteEpochsCSV(w io.Writer, epochs []models.EpochView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start_time", "end_time", "stage"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, ep := range epochs {
		row := []string{strconv.Itoa(ep.StartTime), strconv.Itoa(ep.EndTime), ep.Stage}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes the overall statistics followed by one row per stage.
func WriteSummaryCSV(w io.Writer, sum *stats.Summary) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"rater", sum.Rater},
		{"total_epochs", strconv.Itoa(sum.TotalEpochs)},
		{"recording_seconds", strconv.Itoa(sum.RecordingSeconds)},
		{"sleep_seconds", strconv.Itoa(sum.SleepSeconds)},
		{"sleep_efficiency", strconv.FormatFloat(sum.SleepEfficiency, 'f', 4, 64)},
		{"sleep_onset_seconds", strconv.Itoa(sum.SleepOnsetSec)},
		{"transitions", strconv.Itoa(sum.Transitions)},
		{},
		{"stage", "epochs", "seconds"},
	}
	for _, ss := range sum.Stages {
		rows = append(rows, []string{ss.Stage, strconv.Itoa(ss.Epochs), strconv.Itoa(ss.Seconds)})
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
