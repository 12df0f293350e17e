package stats

import (
	"testing"

	"github.com/hyperjump/nemuri/internal/models"
)

func epochsFixture() []models.EpochView {
	return []models.EpochView{
		{StartTime: 0, EndTime: 30, Stage: "W"},
		{StartTime: 30, EndTime: 60, Stage: "W"},
		{StartTime: 60, EndTime: 90, Stage: "N1"},
		{StartTime: 90, EndTime: 120, Stage: "N2"},
		{StartTime: 120, EndTime: 150, Stage: "N2"},
		{StartTime: 150, EndTime: 180, Stage: "REM"},
	}
}

func TestCompute(t *testing.T) {
	sum := Compute("Alice", epochsFixture(), nil)

	if sum.Rater != "Alice" {
		t.Errorf("rater = %q", sum.Rater)
	}
	if sum.TotalEpochs != 6 {
		t.Errorf("total epochs = %d", sum.TotalEpochs)
	}
	if sum.RecordingSeconds != 180 {
		t.Errorf("recording seconds = %d", sum.RecordingSeconds)
	}
	if sum.SleepSeconds != 120 {
		t.Errorf("sleep seconds = %d", sum.SleepSeconds)
	}
	if sum.SleepOnsetSec != 60 {
		t.Errorf("sleep onset = %d", sum.SleepOnsetSec)
	}
	if got, want := sum.SleepEfficiency, 120.0/180.0; got != want {
		t.Errorf("efficiency = %f, want %f", got, want)
	}
	// W->N1, N1->N2, N2->REM
	if sum.Transitions != 3 {
		t.Errorf("transitions = %d", sum.Transitions)
	}

	byStage := map[string]StageSummary{}
	for _, ss := range sum.Stages {
		byStage[ss.Stage] = ss
	}
	if byStage["N2"].Epochs != 2 || byStage["N2"].Seconds != 60 {
		t.Errorf("N2 summary = %+v", byStage["N2"])
	}
	if byStage["W"].Seconds != 60 {
		t.Errorf("W summary = %+v", byStage["W"])
	}

	// Per-stage seconds add up to the whole recording.
	total := 0
	for _, ss := range sum.Stages {
		total += ss.Seconds
	}
	if total != sum.RecordingSeconds {
		t.Errorf("stage seconds sum %d != recording %d", total, sum.RecordingSeconds)
	}
}

func TestCompute_CustomSleepStages(t *testing.T) {
	sum := Compute("Alice", epochsFixture(), []string{"REM"})
	if sum.SleepSeconds != 30 {
		t.Errorf("sleep seconds = %d, want 30", sum.SleepSeconds)
	}
	if sum.SleepOnsetSec != 150 {
		t.Errorf("sleep onset = %d, want 150", sum.SleepOnsetSec)
	}
}

func TestCompute_NoSleep(t *testing.T) {
	epochs := []models.EpochView{
		{StartTime: 0, EndTime: 30, Stage: "W"},
	}
	sum := Compute("Alice", epochs, nil)
	if sum.SleepOnsetSec != -1 {
		t.Errorf("sleep onset = %d, want -1", sum.SleepOnsetSec)
	}
	if sum.SleepEfficiency != 0 {
		t.Errorf("efficiency = %f", sum.SleepEfficiency)
	}
}

func TestCompute_Empty(t *testing.T) {
	sum := Compute("Alice", nil, nil)
	if sum.TotalEpochs != 0 || sum.RecordingSeconds != 0 || sum.Transitions != 0 {
		t.Errorf("empty summary = %+v", sum)
	}
}
