package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/hyperjump/simstore/internal/models"
)

// record accepts the field spellings used by existing export files:
// guides use key/content, cases use user_query, keyword files carry bare strings.
type record struct {
	ID        int64                  `json:"id"`
	Category  string                 `json:"category"`
	Key       string                 `json:"key"`
	Title     string                 `json:"title"`
	Text      string                 `json:"text"`
	UserQuery string                 `json:"user_query"`
	Content   string                 `json:"content"`
	Answer    string                 `json:"answer"`
	Metadata  map[string]interface{} `json:"metadata"`
	Meta      map[string]interface{} `json:"meta"`
}

func (r *record) document() *models.Document {
	doc := &models.Document{
		ID:       r.ID,
		Category: firstNonEmpty(r.Category, r.Key),
		Title:    r.Title,
		Text:     firstNonEmpty(r.Text, r.UserQuery, r.Content),
		Answer:   r.Answer,
		Metadata: r.Metadata,
	}
	if doc.Metadata == nil {
		doc.Metadata = r.Meta
	}
	return doc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseJSON decodes one of:
//
//	[{"id": 1, "category": "...", "text": "...", "answer": "..."}, ...]
//	{"1": {"key": "...", "title": "...", "content": "..."}, ...}
//	{"keywords": ["...", ...]}
//	["keyword", ...]
func ParseJSON(data []byte) ([]*models.Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON input")
	}
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse JSON list: %w", err)
		}
		return parseItems(items)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("parse JSON object: %w", err)
		}
		if raw, ok := obj["keywords"]; ok && len(obj) == 1 {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("keywords must be a list: %w", err)
			}
			return parseItems(items)
		}
		return parseKeyed(obj)
	default:
		return nil, fmt.Errorf("JSON input must be a list or an object")
	}
}

func parseItems(items []json.RawMessage) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(items))
	for i, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			docs = append(docs, &models.Document{Text: text})
			continue
		}
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		docs = append(docs, r.document())
	}
	return docs, nil
}

// parseKeyed reads an object keyed by integer id, in ascending id order.
func parseKeyed(obj map[string]json.RawMessage) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(obj))
	for key, raw := range obj {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q must be an integer id", key)
		}
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("id %d: %w", id, err)
		}
		r.ID = id
		docs = append(docs, r.document())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
