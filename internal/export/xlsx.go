package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/nemuri/internal/models"
	"github.com/hyperjump/nemuri/internal/stats"
)

const (
	sheetEpochs  = "Epochs"
	sheetSummary = "Summary"
)

// WriteWorkbookXLSX writes an xlsx workbook at path with an Epochs sheet
// (one row per epoch) and a Summary sheet (overall and per-stage
// statistics).
func WriteWorkbookXLSX(path string, epochs []models.EpochView, sum *stats.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetEpochs); err != nil {
		return fmt.Errorf("failed to create epochs sheet: %w", err)
	}
	header := []interface{}{"start_time", "end_time", "stage"}
	if err := f.SetSheetRow(sheetEpochs, "A1", &header); err != nil {
		return fmt.Errorf("failed to write epochs header: %w", err)
	}
	for i, ep := range epochs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{ep.StartTime, ep.EndTime, ep.Stage}
		if err := f.SetSheetRow(sheetEpochs, cell, &row); err != nil {
			return fmt.Errorf("failed to write epoch row: %w", err)
		}
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"rater", sum.Rater},
		{"total_epochs", sum.TotalEpochs},
		{"recording_seconds", sum.RecordingSeconds},
		{"sleep_seconds", sum.SleepSeconds},
		{"sleep_efficiency", sum.SleepEfficiency},
		{"sleep_onset_seconds", sum.SleepOnsetSec},
		{"transitions", sum.Transitions},
		{},
		{"stage", "epochs", "seconds"},
	}
	for _, ss := range sum.Stages {
		summaryRows = append(summaryRows, []interface{}{ss.Stage, ss.Epochs, ss.Seconds})
	}
	for i := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if len(summaryRows[i]) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheetSummary, cell, &summaryRows[i]); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
