// Package models defines the annotation data model shared across nemuri.
package models

import "fmt"

// Epoch is the atomic annotation unit: one fixed span of the recording
// carrying one sleep-stage label. ID is the sole lookup key for mutation
// and is assumed unique within a document; lookups take the first match
// in document order when it is not.
type Epoch struct {
	ID        string `json:"id"`
	StartTime int    `json:"start_time"` // seconds from recording start
	EndTime   int    `json:"end_time"`   // seconds from recording start
	Stage     string `json:"stage"`
}

// Duration returns the epoch length in seconds.
func (e *Epoch) Duration() int {
	return e.EndTime - e.StartTime
}

// EpochView is the read projection returned by epoch queries.
type EpochView struct {
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	Stage     string `json:"stage"`
}

// Rater is one scorer's ordered scoring of the recording. Epoch order is
// the temporal order of the recording and must survive load/save cycles.
type Rater struct {
	Name   string  `json:"name"`
	Epochs []Epoch `json:"epochs"`
}

// Document is the root persisted annotation object. The wire format
// allows several raters; store operations act on Raters[0] only, so the
// single-rater limitation stays visible instead of hard-coded.
type Document struct {
	Raters []Rater `json:"raters"`
}

// Validate checks temporal consistency and stage presence. The store does
// not run it on load (the scoring tool owns these guarantees); it is for
// callers that build documents programmatically.
func (d *Document) Validate() error {
	if len(d.Raters) == 0 {
		return fmt.Errorf("document has no rater")
	}
	for _, r := range d.Raters {
		for i, ep := range r.Epochs {
			if ep.ID == "" {
				return fmt.Errorf("rater %q: epoch %d has no id", r.Name, i)
			}
			if ep.EndTime <= ep.StartTime {
				return fmt.Errorf("rater %q: epoch %q: end_time %d is not after start_time %d",
					r.Name, ep.ID, ep.EndTime, ep.StartTime)
			}
			if ep.Stage == "" {
				return fmt.Errorf("rater %q: epoch %q has no stage", r.Name, ep.ID)
			}
		}
	}
	return nil
}
