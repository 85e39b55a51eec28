package retrieval

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/simstore/internal/contentid"
	"github.com/hyperjump/simstore/internal/models"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"cases", "guides", "keywords", "case_text"} {
		if k, err := ParseKind(name); err != nil || string(k) != name {
			t.Errorf("ParseKind(%q) = %q, %v", name, k, err)
		}
	}
	if _, err := ParseKind("images"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKindPrepare(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		doc     models.Document
		wantErr bool
	}{
		{"case ok", KindCases, models.Document{ID: 1, Category: "c", Text: "t", Answer: "a"}, false},
		{"case missing answer", KindCases, models.Document{ID: 1, Category: "c", Text: "t"}, true},
		{"case missing category", KindCases, models.Document{ID: 1, Text: "t", Answer: "a"}, true},
		{"case zero id", KindCases, models.Document{Category: "c", Text: "t", Answer: "a"}, true},
		{"case negative id", KindCases, models.Document{ID: -4, Category: "c", Text: "t", Answer: "a"}, true},
		{"blank text", KindCases, models.Document{ID: 1, Category: "c", Text: "   ", Answer: "a"}, true},
		{"guide ok", KindGuides, models.Document{ID: 2, Category: "key", Title: "T", Text: "body"}, false},
		{"guide missing title", KindGuides, models.Document{ID: 2, Category: "key", Text: "body"}, true},
		{"guide missing key", KindGuides, models.Document{ID: 2, Title: "T", Text: "body"}, true},
		{"keyword ignores id", KindKeywords, models.Document{ID: -1, Text: "urgent"}, false},
		{"case text derives id", KindCaseText, models.Document{Category: "case 1", Text: "transcript"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			err := tt.kind.prepare(0, &doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestKindPrepare_Normalizes(t *testing.T) {
	doc := models.Document{Text: "  urgent transfer \n"}
	if err := KindKeywords.prepare(0, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Text != "urgent transfer" {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.ID != contentid.ForText("urgent transfer") {
		t.Errorf("ID = %d, want content id", doc.ID)
	}
}

func TestCaseTextID(t *testing.T) {
	meta := map[string]interface{}{"file_id": "f1", "interval": "2024-01"}
	a := models.Document{Category: "case 1", Text: "one", Metadata: meta}
	b := models.Document{Category: "case 1", Text: "two", Metadata: meta}
	c := models.Document{Category: "case 2", Text: "one", Metadata: meta}
	for _, d := range []*models.Document{&a, &b, &c} {
		if err := KindCaseText.prepare(0, d); err != nil {
			t.Fatal(err)
		}
	}
	if a.ID != b.ID {
		t.Error("same grouping key should give the same id")
	}
	if a.ID == c.ID {
		t.Error("different case names should give different ids")
	}

	explicit := models.Document{ID: 42, Category: "case 1", Text: "x", Metadata: meta}
	if err := KindCaseText.prepare(0, &explicit); err != nil || explicit.ID != 42 {
		t.Errorf("explicit id overwritten: %d, %v", explicit.ID, err)
	}
}

func TestGuideEmbedText(t *testing.T) {
	doc := &models.Document{
		Category: "loan_fraud",
		Title:    "Loan fraud",
		Text:     "Never pay fees upfront.",
		Metadata: map[string]interface{}{
			"tags":             []interface{}{"loan", "fee"},
			"trigger_keywords": []interface{}{"low interest"},
			"contacts":         []interface{}{map[string]interface{}{"phone": "1332", "name": "FSS"}},
			"risk_level":       "high",
			"priority":         2,
			"unrelated":        "ignored",
		},
	}
	got := KindGuides.EmbedText(doc)
	want := "Loan fraud\nNever pay fees upfront.\nKEY:loan_fraud\n" +
		"TAGS: loan, fee\nKW: low interest\nCONTACTS: name:FSS phone:1332\nRISK:high\nPRIORITY:2"
	if got != want {
		t.Errorf("EmbedText =\n%q\nwant\n%q", got, want)
	}

	plain := &models.Document{Category: "k", Title: "T", Text: "body"}
	if got := KindGuides.EmbedText(plain); got != "T\nbody\nKEY:k" {
		t.Errorf("EmbedText without metadata = %q", got)
	}
	if got := KindCases.EmbedText(doc); got != doc.Text {
		t.Errorf("cases embed raw text, got %q", got)
	}
}

func TestGuideEmbedText_Truncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	var tags []interface{}
	for i := 0; i < 40; i++ {
		tags = append(tags, long)
	}
	meta := flattenGuideMetadata(map[string]interface{}{
		"tags":    tags,
		"actions": []interface{}{map[string]interface{}{"step": long}},
	})
	if n := len([]rune(meta)); n > maxGuideMetaChars {
		t.Errorf("metadata length = %d, want <= %d", n, maxGuideMetaChars)
	}
	items := metaList(map[string]interface{}{"actions": []interface{}{map[string]interface{}{"step": long}}}, "actions", 10)
	if len(items) != 1 || len([]rune(items[0])) != maxGuideItemChars {
		t.Errorf("item not truncated: %d", len([]rune(items[0])))
	}
}
