package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/simstore/internal/models"
)

const (
	maxGuideMetaChars = 1500
	maxGuideItemChars = 200
)

// guideEmbedText renders title, content, key, and selected metadata into one embedding input.
func guideEmbedText(doc *models.Document) string {
	text := fmt.Sprintf("%s\n%s\nKEY:%s\n%s", doc.Title, doc.Text, doc.Category, flattenGuideMetadata(doc.Metadata))
	return strings.TrimSpace(text)
}

func flattenGuideMetadata(meta map[string]interface{}) string {
	if len(meta) == 0 {
		return ""
	}
	var lines []string
	add := func(label, sep string, items []string) {
		if len(items) > 0 {
			lines = append(lines, label+": "+strings.Join(items, sep))
		}
	}
	add("TAGS", ", ", metaList(meta, "tags", 30))
	add("STAGE", ", ", metaList(meta, "stage", 10))
	add("KW", ", ", metaList(meta, "trigger_keywords", 50))
	add("CONTACTS", " | ", metaList(meta, "contacts", 10))
	add("LINKS", " | ", metaList(meta, "links", 10))
	add("ACTIONS", " | ", metaList(meta, "actions", 10))
	if risk, ok := meta["risk_level"]; ok && risk != nil && risk != "" {
		lines = append(lines, fmt.Sprintf("RISK:%v", risk))
	}
	if priority, ok := meta["priority"]; ok && priority != nil {
		lines = append(lines, fmt.Sprintf("PRIORITY:%v", priority))
	}
	return truncateRunes(strings.Join(lines, "\n"), maxGuideMetaChars)
}

// metaList returns up to limit entries of a list value. Object entries render as "k:v" pairs
// in key order, truncated to maxGuideItemChars.
func metaList(meta map[string]interface{}, key string, limit int) []string {
	list, ok := meta[key].([]interface{})
	if !ok {
		return nil
	}
	if len(list) > limit {
		list = list[:limit]
	}
	var out []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k, val := range v {
				if val != nil {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			pairs := make([]string, len(keys))
			for i, k := range keys {
				pairs[i] = fmt.Sprintf("%s:%v", k, v[k])
			}
			out = append(out, truncateRunes(strings.Join(pairs, " "), maxGuideItemChars))
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
