package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultBody     = "word/document.xml"
	docxContentTypes    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// <w:t> runs carry the text; attributes vary.
	docxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// Paragraph ends become line breaks so transcript turns stay separated.
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxOverride     = regexp.MustCompile(`<Override[^>]*>`)
	docxPartName     = regexp.MustCompile(`PartName="([^"]+)"`)
)

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// docxBodyPath resolves the main document part from [Content_Types].xml, falling back to the default.
func docxBodyPath(zr *zip.Reader) string {
	types, err := readZipFile(zr, docxContentTypes)
	if err != nil || types == nil {
		return docxDefaultBody
	}
	for _, override := range docxOverride.FindAllString(string(types), -1) {
		if !strings.Contains(override, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := docxPartName.FindStringSubmatch(override); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return docxDefaultBody
}

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	bodyPath := docxBodyPath(zr)
	body, err := readZipFile(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", bodyPath)
	}

	var lines []string
	for _, para := range docxParagraphEnd.Split(string(body), -1) {
		var b strings.Builder
		for _, m := range docxText.FindAllStringSubmatch(para, -1) {
			b.WriteString(m[1])
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
