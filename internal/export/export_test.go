package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/nemuri/internal/models"
	"github.com/hyperjump/nemuri/internal/stats"
)

var testEpochs = []models.EpochView{
	{StartTime: 0, EndTime: 30, Stage: "W"},
	{StartTime: 30, EndTime: 60, Stage: "N1"},
	{StartTime: 60, EndTime: 90, Stage: "N2"},
}

func TestWriteEpochsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEpochsCSV(&buf, testEpochs); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	if !reflect.DeepEqual(records[0], []string{"start_time", "end_time", "stage"}) {
		t.Errorf("header = %v", records[0])
	}
	if !reflect.DeepEqual(records[2], []string{"30", "60", "N1"}) {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestWriteSummaryCSV(t *testing.T) {
	sum := stats.Compute("Alice", testEpochs, nil)
	var buf bytes.Buffer
	if err := WriteSummaryCSV(&buf, sum); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"rater,Alice", "total_epochs,3", "stage,epochs,seconds", "N2,1,30"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("summary csv missing %q:\n%s", want, out)
		}
	}
}

func TestWriteWorkbookXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	sum := stats.Compute("Alice", testEpochs, nil)
	if err := WriteWorkbookXLSX(path, testEpochs, sum); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	stage, err := f.GetCellValue(sheetEpochs, "C3")
	if err != nil {
		t.Fatal(err)
	}
	if stage != "N1" {
		t.Errorf("Epochs!C3 = %q, want N1", stage)
	}

	rater, err := f.GetCellValue(sheetSummary, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if rater != "Alice" {
		t.Errorf("Summary!B1 = %q, want Alice", rater)
	}
}
