// Package staging converts stage listings exported by other scoring
// programs into annotation documents. Each source is a line-oriented
// export with one scored epoch per row; the importer builds a document
// with contiguous fixed-length epochs starting at second 0, ready for the
// store's Create.
package staging

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/nemuri/internal/models"
)

// Source names a supported staging export format.
type Source string

const (
	// SourcePlain is one stage label per line, used as-is.
	SourcePlain Source = "plain"
	// SourceRemLogic is an Embla RemLogic event export (tab separated,
	// stage code in the first column after the "Sleep Stage" header).
	SourceRemLogic Source = "remlogic"
	// SourceDomino is a Somnomedics Domino export (semicolon separated,
	// stage code in the first column).
	SourceDomino Source = "domino"
)

var remlogicStages = map[string]string{
	"SLEEP-S0":       "Wake",
	"SLEEP-S1":       "NREM1",
	"SLEEP-S2":       "NREM2",
	"SLEEP-S3":       "NREM3",
	"SLEEP-S4":       "NREM3",
	"SLEEP-REM":      "REM",
	"SLEEP-UNSCORED": "Unknown",
}

var dominoStages = map[string]string{
	"Wach":     "Wake",
	"N1":       "NREM1",
	"N2":       "NREM2",
	"N3":       "NREM3",
	"Rem":      "REM",
	"Artefakt": "Artefact",
}

// Import parses r as the given source and builds a document for rater
// with epochs of epochLength seconds. It fails when the source is
// unknown, a stage code cannot be mapped, or no epochs are found.
func Import(r io.Reader, source Source, rater string, epochLength int) (*models.Document, error) {
	if epochLength <= 0 {
		return nil, fmt.Errorf("epoch length must be positive, got %d", epochLength)
	}
	var (
		stages []string
		err    error
	)
	switch source {
	case SourcePlain:
		stages, err = parsePlain(r)
	case SourceRemLogic:
		stages, err = parseRemLogic(r)
	case SourceDomino:
		stages, err = parseDomino(r)
	default:
		return nil, fmt.Errorf("unknown staging source %q", source)
	}
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("no epochs found in %s export", source)
	}
	return NewDocument(rater, stages, epochLength), nil
}

// NewDocument builds a document for rater from an ordered stage listing,
// one contiguous epoch of epochLength seconds per entry starting at
// second 0. Epoch ids are freshly generated.
func NewDocument(rater string, stages []string, epochLength int) *models.Document {
	epochs := make([]models.Epoch, len(stages))
	for i, stage := range stages {
		epochs[i] = models.Epoch{
			ID:        uuid.New().String(),
			StartTime: i * epochLength,
			EndTime:   (i + 1) * epochLength,
			Stage:     stage,
		}
	}
	return &models.Document{Raters: []models.Rater{{Name: rater, Epochs: epochs}}}
}

func parsePlain(r io.Reader) ([]string, error) {
	var stages []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stages = append(stages, line)
	}
	return stages, scanner.Err()
}

func parseRemLogic(r io.Reader) ([]string, error) {
	var stages []string
	inBody := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !inBody {
			// Header ends at the column-title row.
			if strings.HasPrefix(line, "Sleep Stage") {
				inBody = true
			}
			continue
		}
		code := strings.TrimSpace(strings.SplitN(line, "\t", 2)[0])
		stage, ok := remlogicStages[code]
		if !ok {
			return nil, fmt.Errorf("unknown remlogic stage code %q", code)
		}
		stages = append(stages, stage)
	}
	return stages, scanner.Err()
}

func parseDomino(r io.Reader) ([]string, error) {
	var stages []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		code := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		stage, ok := dominoStages[code]
		if !ok {
			// Domino exports start with a free-form header block.
			if len(stages) == 0 {
				continue
			}
			return nil, fmt.Errorf("unknown domino stage code %q", code)
		}
		stages = append(stages, stage)
	}
	return stages, scanner.Err()
}
