// Package models defines core data structures for documents, search requests, hits, and stats.
package models

import "time"

// Document is a stored record. ID is the only key shared between the record store and the vector index.
type Document struct {
	ID int64 `json:"id" db:"id"`
	// Category holds the case category, guide key, or case name depending on the collection.
	Category  string                 `json:"category,omitempty" db:"category"`
	Title     string                 `json:"title,omitempty" db:"title"`
	Text      string                 `json:"text" db:"body"`
	Answer    string                 `json:"answer,omitempty" db:"answer"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Hit is a single search result joined with its durable record.
type Hit struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
	Rank     int       `json:"rank"`
}

// Stats reports the health of one collection. Drift is IndexedCount minus DurableCount.
type Stats struct {
	Collection   string     `json:"collection"`
	DurableCount int        `json:"durable_count"`
	IndexedCount int        `json:"indexed_count"`
	Drift        int        `json:"drift"`
	Dimensions   int        `json:"dimensions"`
	Metric       string     `json:"metric"`
	Built        bool       `json:"built"`
	LastBuiltAt  *time.Time `json:"last_built_at,omitempty"`
	LastMutation *time.Time `json:"last_mutation_at,omitempty"`
	BuildID      string     `json:"build_id,omitempty"`
	DiskBytes    int64      `json:"disk_bytes,omitempty"`
}
