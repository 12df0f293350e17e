package score

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/nemuri/internal/models"
)

// The wire format is positional: each epoch element carries an id
// attribute and exactly three ordered value children read as start time,
// end time, and stage. Child tag names are not interpreted on read, but
// they are retained per document so a load/save round trip reproduces the
// structure of documents written with a different tag vocabulary.
type wireNames struct {
	root   string
	rater  string
	epoch  string
	values [3]string
}

func defaultWireNames() wireNames {
	return wireNames{
		root:   "scores",
		rater:  "rater",
		epoch:  "epoch",
		values: [3]string{"start_time", "end_time", "stage"},
	}
}

type xmlDocument struct {
	XMLName xml.Name
	Raters  []xmlRater `xml:",any"`
}

type xmlRater struct {
	XMLName xml.Name
	Name    string     `xml:"name,attr"`
	Epochs  []xmlEpoch `xml:",any"`
}

type xmlEpoch struct {
	XMLName xml.Name
	ID      string     `xml:"id,attr"`
	Values  []xmlValue `xml:",any"`
}

type xmlValue struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// decodeDocument parses the wire form and projects it into the named
// model, trimming the whitespace padding a pretty-printing save leaves in
// free-text nodes so that repeated load/save cycles are idempotent.
func decodeDocument(data []byte) (*models.Document, wireNames, error) {
	var raw xmlDocument
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, wireNames{}, fmt.Errorf("parse xml: %w", err)
	}
	if len(raw.Raters) == 0 {
		return nil, wireNames{}, fmt.Errorf("document %q has no rater section", raw.XMLName.Local)
	}

	names := defaultWireNames()
	names.root = raw.XMLName.Local
	names.rater = raw.Raters[0].XMLName.Local

	doc := &models.Document{Raters: make([]models.Rater, 0, len(raw.Raters))}
	for _, rr := range raw.Raters {
		rater := models.Rater{
			Name:   strings.TrimSpace(rr.Name),
			Epochs: make([]models.Epoch, 0, len(rr.Epochs)),
		}
		for _, re := range rr.Epochs {
			if len(re.Values) < 3 {
				return nil, wireNames{}, fmt.Errorf("epoch %q has %d value children, want 3", re.ID, len(re.Values))
			}
			start, err := strconv.Atoi(strings.TrimSpace(re.Values[0].Text))
			if err != nil {
				return nil, wireNames{}, fmt.Errorf("epoch %q: invalid start time %q", re.ID, re.Values[0].Text)
			}
			end, err := strconv.Atoi(strings.TrimSpace(re.Values[1].Text))
			if err != nil {
				return nil, wireNames{}, fmt.Errorf("epoch %q: invalid end time %q", re.ID, re.Values[1].Text)
			}
			rater.Epochs = append(rater.Epochs, models.Epoch{
				ID:        re.ID,
				StartTime: start,
				EndTime:   end,
				Stage:     strings.TrimSpace(re.Values[2].Text),
			})
			names.epoch = re.XMLName.Local
			for i := 0; i < 3; i++ {
				names.values[i] = re.Values[i].XMLName.Local
			}
		}
		doc.Raters = append(doc.Raters, rater)
	}
	return doc, names, nil
}

// encodeDocument serializes the document to canonical pretty-printed XML,
// one node per line with stable two-space indentation.
func encodeDocument(doc *models.Document, names wireNames) ([]byte, error) {
	raw := xmlDocument{
		XMLName: xml.Name{Local: names.root},
		Raters:  make([]xmlRater, 0, len(doc.Raters)),
	}
	for _, rater := range doc.Raters {
		rr := xmlRater{
			XMLName: xml.Name{Local: names.rater},
			Name:    rater.Name,
			Epochs:  make([]xmlEpoch, 0, len(rater.Epochs)),
		}
		for _, ep := range rater.Epochs {
			rr.Epochs = append(rr.Epochs, xmlEpoch{
				XMLName: xml.Name{Local: names.epoch},
				ID:      ep.ID,
				Values: []xmlValue{
					{XMLName: xml.Name{Local: names.values[0]}, Text: strconv.Itoa(ep.StartTime)},
					{XMLName: xml.Name{Local: names.values[1]}, Text: strconv.Itoa(ep.EndTime)},
					{XMLName: xml.Name{Local: names.values[2]}, Text: ep.Stage},
				},
			})
		}
		raw.Raters = append(raw.Raters, rr)
	}

	body, err := xml.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
