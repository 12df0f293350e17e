// Package stats computes summary sleep statistics from a scored epoch
// sequence. It is pure computation over store query results; it never
// touches the annotation file itself.
package stats

import (
	"sort"

	"github.com/hyperjump/nemuri/internal/models"
)

// DefaultSleepStages are the stage labels counted as sleep when the
// caller does not supply its own vocabulary. Stage names are rater
// specific, so both AASM and R&K spellings are included.
var DefaultSleepStages = []string{
	"N1", "N2", "N3", "N4",
	"NREM1", "NREM2", "NREM3", "NREM4",
	"S1", "S2", "S3", "S4",
	"REM",
}

// StageSummary aggregates one stage label.
type StageSummary struct {
	Stage   string `json:"stage"`
	Epochs  int    `json:"epochs"`
	Seconds int    `json:"seconds"`
}

// Summary holds the sleep statistics of one rater's scoring.
type Summary struct {
	Rater            string         `json:"rater"`
	TotalEpochs      int            `json:"total_epochs"`
	RecordingSeconds int            `json:"recording_seconds"`
	SleepSeconds     int            `json:"sleep_seconds"`
	SleepEfficiency  float64        `json:"sleep_efficiency"`
	SleepOnsetSec    int            `json:"sleep_onset_seconds"` // -1 when no sleep epoch exists
	Transitions      int            `json:"transitions"`
	Stages           []StageSummary `json:"stages"`
}

// Compute summarizes epochs for rater. sleepStages names the labels that
// count as sleep; nil means DefaultSleepStages. Epochs must be in
// document order, which is temporal order.
func Compute(rater string, epochs []models.EpochView, sleepStages []string) *Summary {
	if sleepStages == nil {
		sleepStages = DefaultSleepStages
	}
	sleep := make(map[string]struct{}, len(sleepStages))
	for _, st := range sleepStages {
		sleep[st] = struct{}{}
	}

	sum := &Summary{
		Rater:         rater,
		TotalEpochs:   len(epochs),
		SleepOnsetSec: -1,
	}
	perStage := make(map[string]*StageSummary)
	var order []string
	prevStage := ""
	for i, ep := range epochs {
		dur := ep.EndTime - ep.StartTime
		sum.RecordingSeconds += dur

		ss, ok := perStage[ep.Stage]
		if !ok {
			ss = &StageSummary{Stage: ep.Stage}
			perStage[ep.Stage] = ss
			order = append(order, ep.Stage)
		}
		ss.Epochs++
		ss.Seconds += dur

		if _, isSleep := sleep[ep.Stage]; isSleep {
			sum.SleepSeconds += dur
			if sum.SleepOnsetSec < 0 {
				sum.SleepOnsetSec = ep.StartTime - epochs[0].StartTime
			}
		}
		if i > 0 && ep.Stage != prevStage {
			sum.Transitions++
		}
		prevStage = ep.Stage
	}
	if sum.RecordingSeconds > 0 {
		sum.SleepEfficiency = float64(sum.SleepSeconds) / float64(sum.RecordingSeconds)
	}

	sort.Strings(order)
	sum.Stages = make([]StageSummary, 0, len(order))
	for _, stage := range order {
		sum.Stages = append(sum.Stages, *perStage[stage])
	}
	return sum
}
