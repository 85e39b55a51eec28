package retrieval

import (
	"fmt"
	"strings"

	"github.com/hyperjump/simstore/internal/contentid"
	"github.com/hyperjump/simstore/internal/models"
)

// Kind selects how a collection validates documents, assigns ids, and derives embedding text.
type Kind string

const (
	// KindCases holds example cases: category, user text, and answer.
	KindCases Kind = "cases"
	// KindGuides holds guidance documents keyed by a unique guide key.
	KindGuides Kind = "guides"
	// KindKeywords holds free-text keywords with content-addressed ids.
	KindKeywords Kind = "keywords"
	// KindCaseText holds raw case transcripts grouped by source file, interval, and case name.
	KindCaseText Kind = "case_text"
)

// ParseKind converts a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCases, KindGuides, KindKeywords, KindCaseText:
		return k, nil
	default:
		return "", fmt.Errorf("unknown collection kind %q (supported: cases, guides, keywords, case_text)", s)
	}
}

// prepare normalizes doc in place, assigns content-derived ids, and validates required fields.
// i is the position in the submitted batch, used in error messages.
func (k Kind) prepare(i int, doc *models.Document) error {
	if doc == nil {
		return validationErrorf("document[%d] is null", i)
	}
	doc.Text = strings.TrimSpace(doc.Text)
	doc.Category = strings.TrimSpace(doc.Category)
	if doc.Text == "" {
		return validationErrorf("document[%d]: text is required", i)
	}

	switch k {
	case KindKeywords:
		doc.ID = contentid.ForText(doc.Text)
		return nil
	case KindCaseText:
		if doc.ID == 0 {
			doc.ID = caseTextID(doc)
		}
	}
	if doc.ID <= 0 {
		return validationErrorf("document[%d]: id must be a positive integer", i)
	}

	switch k {
	case KindCases:
		if doc.Category == "" {
			return validationErrorf("document %d: category is required", doc.ID)
		}
		if strings.TrimSpace(doc.Answer) == "" {
			return validationErrorf("document %d: answer is required", doc.ID)
		}
	case KindGuides:
		if doc.Category == "" {
			return validationErrorf("document %d: key is required", doc.ID)
		}
		if strings.TrimSpace(doc.Title) == "" {
			return validationErrorf("document %d: title is required", doc.ID)
		}
	}
	return nil
}

// EmbedText returns the text whose embedding represents doc in the index.
func (k Kind) EmbedText(doc *models.Document) string {
	if k == KindGuides {
		return guideEmbedText(doc)
	}
	return doc.Text
}

// caseTextID derives an id from the (file_id, interval, case name) grouping key,
// falling back to the text itself when no grouping key is present.
func caseTextID(doc *models.Document) int64 {
	fileID := metaString(doc.Metadata, "file_id")
	interval := metaString(doc.Metadata, "interval")
	if fileID == "" && interval == "" && doc.Category == "" {
		return contentid.ForText(doc.Text)
	}
	return contentid.ForParts(fileID, interval, doc.Category)
}

func metaString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}
