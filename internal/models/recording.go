package models

import "time"

// Header describes a recording as exposed by a dataset backend.
type Header struct {
	SubjectID         string                 `json:"subject_id"`
	StartTime         time.Time              `json:"start_time"`
	SamplingFrequency float64                `json:"sampling_frequency"`
	ChannelNames      []string               `json:"channel_names"`
	SampleCount       int                    `json:"sample_count"`
	Original          map[string]interface{} `json:"original,omitempty"` // format-specific header blob
}

// Marker is a recording event (also called trigger). Start and End are in
// seconds from the start of the recording; Channels is nil when the event
// is not tied to specific channels.
type Marker struct {
	Name     string   `json:"name"`
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Channels []string `json:"channels,omitempty"`
}
