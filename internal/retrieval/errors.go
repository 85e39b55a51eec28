package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrEmbedding marks an embedding provider failure; the enclosing call is aborted.
	ErrEmbedding = errors.New("embedding failed")
	// ErrUnknownCollection is returned by Registry.Get for undeclared names.
	ErrUnknownCollection = errors.New("unknown collection")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RemovalReport describes a best-effort vector removal. A failed removal leaves ghost
// entries that search skips; Stats reports the resulting drift until the next Build.
type RemovalReport struct {
	Requested int   `json:"requested"`
	Removed   int   `json:"removed"`
	OK        bool  `json:"ok"`
	Err       error `json:"-"`
}

// Message returns the removal error text, or "" when removal succeeded.
func (r RemovalReport) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
