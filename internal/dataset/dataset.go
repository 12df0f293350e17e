// Package dataset declares the read-only recording interfaces the viewer
// consumes alongside annotations: header, raw samples, and markers.
// Concrete format backends (EDF, BIDS, ...) live outside this module; the
// annotation store never depends on them.
package dataset

import (
	"errors"
	"fmt"

	"github.com/hyperjump/nemuri/internal/models"
)

// ErrMultipleSamplingFrequencies is returned when a recording's channels
// disagree on sampling rate. This is a hard invariant of the viewer; it
// is surfaced immediately and never recovered from.
var ErrMultipleSamplingFrequencies = errors.New("multiple sampling frequencies not supported")

// Reader exposes one recording.
type Reader interface {
	// Header returns the recording header.
	Header() (*models.Header, error)
	// Samples returns raw data as [channels × samples] for the channel
	// indices chans and the half-open sample range [begSample, endSample).
	Samples(chans []int, begSample, endSample int) ([][]float64, error)
	// Markers returns all recording events in temporal order.
	Markers() ([]models.Marker, error)
}

// UniformFrequency returns the single sampling frequency shared by all
// channels, or ErrMultipleSamplingFrequencies when they disagree.
func UniformFrequency(freqs []float64) (float64, error) {
	if len(freqs) == 0 {
		return 0, errors.New("no channels")
	}
	first := freqs[0]
	for _, f := range freqs[1:] {
		if f != first {
			return 0, ErrMultipleSamplingFrequencies
		}
	}
	return first, nil
}

// MemoryRecording is an in-memory Reader used by tests and tooling.
type MemoryRecording struct {
	Hdr   models.Header
	Data  [][]float64 // channels × samples
	Marks []models.Marker
}

// Header returns the recording header.
func (m *MemoryRecording) Header() (*models.Header, error) {
	hdr := m.Hdr
	return &hdr, nil
}

// Samples returns sub-slices of the stored data, bounds-checked.
func (m *MemoryRecording) Samples(chans []int, begSample, endSample int) ([][]float64, error) {
	if begSample < 0 || endSample < begSample {
		return nil, fmt.Errorf("invalid sample range [%d, %d)", begSample, endSample)
	}
	out := make([][]float64, 0, len(chans))
	for _, ch := range chans {
		if ch < 0 || ch >= len(m.Data) {
			return nil, fmt.Errorf("channel index %d out of range (%d channels)", ch, len(m.Data))
		}
		if endSample > len(m.Data[ch]) {
			return nil, fmt.Errorf("sample range [%d, %d) exceeds %d samples", begSample, endSample, len(m.Data[ch]))
		}
		out = append(out, m.Data[ch][begSample:endSample])
	}
	return out, nil
}

// Markers returns the stored markers.
func (m *MemoryRecording) Markers() ([]models.Marker, error) {
	return m.Marks, nil
}
