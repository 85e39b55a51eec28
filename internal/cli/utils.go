// Package cli formats command output for simstore.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/simstore/internal/models"
	"github.com/hyperjump/simstore/pkg/utils"
)

// OutputFormat selects human-readable or JSON output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json", or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchOutput is the JSON shape of a search command.
type SearchOutput struct {
	Collection string        `json:"collection"`
	Query      string        `json:"query"`
	Results    []*models.Hit `json:"results"`
}

// WriteHits writes search hits in the given format.
func WriteHits(w io.Writer, out *SearchOutput, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, out)
	}
	fmt.Fprintf(w, "\nFound %d results in %s for %q\n\n", len(out.Results), out.Collection, out.Query)
	for _, hit := range out.Results {
		doc := hit.Document
		fmt.Fprintf(w, "[%d] score %.4f  id %d", hit.Rank, hit.Score, doc.ID)
		if doc.Category != "" {
			fmt.Fprintf(w, "  (%s)", doc.Category)
		}
		fmt.Fprintln(w)
		if doc.Title != "" {
			fmt.Fprintf(w, "    title:  %s\n", doc.Title)
		}
		fmt.Fprintf(w, "    text:   %s\n", utils.Truncate(utils.OneLine(doc.Text), 200))
		if doc.Answer != "" {
			fmt.Fprintf(w, "    answer: %s\n", utils.Truncate(utils.OneLine(doc.Answer), 200))
		}
	}
	return nil
}

// WriteStats writes collection stats in the given format.
func WriteStats(w io.Writer, stats []*models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, stats)
	}
	for _, st := range stats {
		built := "never"
		if st.LastBuiltAt != nil {
			built = st.LastBuiltAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-12s durable=%d indexed=%d drift=%d dim=%d built=%s\n",
			st.Collection, st.DurableCount, st.IndexedCount, st.Drift, st.Dimensions, built)
	}
	return nil
}
