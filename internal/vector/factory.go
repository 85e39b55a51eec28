package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat is exact brute-force search with removal support.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFlatAppend is exact search without removal; superseded entries linger as ghosts.
	IndexTypeFlatAppend IndexType = "flat-append"
	// IndexTypeFAISS uses a FAISS IndexIDMap2 over IndexFlatIP.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates a vector index of the specified type.
// A dimension of 0 creates an index whose dimension is fixed by the first Ensure call.
func NewIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeFlatAppend:
		return NewAppendOnlyIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, flat-append, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
