package models

import (
	"fmt"
	"strings"
)

// SearchRequest is a search issued through the operator API or CLI.
type SearchRequest struct {
	Query    string   `json:"query"`
	K        int      `json:"k,omitempty"`
	Category string   `json:"category,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// Validate rejects empty queries and negative k, applies defaultK when k is unset, and caps k at maxK.
func (q *SearchRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		return fmt.Errorf("k must be positive, got %d", q.K)
	}
	if q.K == 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}
