package score

import (
	"strings"
	"testing"

	"github.com/hyperjump/nemuri/internal/models"
)

func TestDecodeDocument_TrimsPadding(t *testing.T) {
	// Whitespace everywhere a pretty printer puts it, including inside
	// the stage text.
	const padded = `<scores>
	<rater name="  Alice  ">
		<epoch id="e1">
			<start_time>  0  </start_time>
			<end_time>
30
</end_time>
			<stage>  W  </stage>
		</epoch>
	</rater>
</scores>`
	doc, _, err := decodeDocument([]byte(padded))
	if err != nil {
		t.Fatal(err)
	}
	ep := doc.Raters[0].Epochs[0]
	if doc.Raters[0].Name != "Alice" {
		t.Errorf("rater = %q", doc.Raters[0].Name)
	}
	if ep.StartTime != 0 || ep.EndTime != 30 || ep.Stage != "W" {
		t.Errorf("epoch = %+v", ep)
	}
}

func TestEncodeDocument_OneNodePerLine(t *testing.T) {
	doc := &models.Document{Raters: []models.Rater{{
		Name:   "Alice",
		Epochs: []models.Epoch{{ID: "e1", StartTime: 0, EndTime: 30, Stage: "W"}},
	}}}
	out, err := encodeDocument(doc, defaultWireNames())
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, want := range []string{
		`<rater name="Alice">`,
		`<epoch id="e1">`,
		`<start_time>0</start_time>`,
		`<end_time>30</end_time>`,
		`<stage>W</stage>`,
	} {
		found := false
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("output missing line %q:\n%s", want, text)
		}
	}
	if !strings.HasPrefix(text, "<?xml") {
		t.Error("output missing xml declaration")
	}
}

func TestCodec_ForeignTagNamesPreserved(t *testing.T) {
	// Documents written with a different tag vocabulary must round-trip
	// with their own tags, not ours.
	const foreign = `<sleep_scores>
  <scorer name="Alice">
    <period id="p1">
      <from>0</from>
      <to>30</to>
      <label>W</label>
    </period>
  </scorer>
</sleep_scores>`
	doc, names, err := decodeDocument([]byte(foreign))
	if err != nil {
		t.Fatal(err)
	}
	out, err := encodeDocument(doc, names)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, want := range []string{"<sleep_scores>", `<scorer name="Alice">`, `<period id="p1">`, "<from>0</from>", "<to>30</to>", "<label>W</label>"} {
		if !strings.Contains(text, want) {
			t.Errorf("round trip lost %q:\n%s", want, text)
		}
	}
}

func TestDecodeDocument_ExtraValueChildrenIgnored(t *testing.T) {
	// Only the first three children are interpreted; trailing children
	// added by other tools do not break the read.
	const extra = `<scores><rater name="A">
  <epoch id="e1"><start_time>0</start_time><end_time>30</end_time><stage>W</stage><quality>good</quality></epoch>
</rater></scores>`
	doc, _, err := decodeDocument([]byte(extra))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Raters[0].Epochs[0].Stage != "W" {
		t.Errorf("stage = %q", doc.Raters[0].Epochs[0].Stage)
	}
}
