// Package loader turns bulk input files into documents for ingestion.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/simstore/internal/models"
)

// Loader reads documents from JSON, spreadsheets, and single transcript files.
type Loader struct {
	logger     *zap.Logger
	deidentify bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithDeidentify masks names, phone numbers, account numbers, URLs, and long digit runs in
// transcript text before it is returned.
func WithDeidentify(on bool) Option {
	return func(ld *Loader) { ld.deidentify = on }
}

// New returns a Loader.
func New(opts ...Option) *Loader {
	ld := &Loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load reads path and returns its documents. The extension selects the format:
// .json holds document lists, guide dicts, or keyword lists; .xlsx holds transcript rows grouped
// into case-text documents; .pdf, .docx, .odt, .rtf, .txt, and .md become one case-text document.
func (ld *Loader) Load(path string) ([]*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return ParseJSON(data)
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		docs, err := ld.groupSpreadsheet(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ld.logger.Debug("loaded spreadsheet", zap.String("path", path), zap.Int("documents", len(docs)))
		return docs, nil
	}

	text, err := ld.extract(path, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		ld.logger.Warn("no text extracted", zap.String("path", path))
		return nil, nil
	}
	if ld.deidentify {
		text = Deidentify(text)
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return []*models.Document{{
		Category: name,
		Text:     text,
		Metadata: map[string]interface{}{"file_id": base, "source": path},
	}}, nil
}

func (ld *Loader) extract(path, ext string) (string, error) {
	switch ext {
	case ".odt", ".rtf":
		return extractWithCat(path)
	case ".txt", ".md":
	case ".pdf", ".docx":
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	default:
		return extractPlain(content), nil
	}
}
