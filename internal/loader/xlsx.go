package loader

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/simstore/internal/contentid"
	"github.com/hyperjump/simstore/internal/models"
)

// Accepted header names for the case name column.
var caseNameColumns = []string{"case_name", "파일"}

type groupKey struct {
	fileID   int
	interval int
	caseName string
}

// groupSpreadsheet reads transcript rows (text, file_id, interval, case name) from the first
// sheet and merges rows sharing a (file_id, interval, case name) key into one document.
func (ld *Loader) groupSpreadsheet(r io.Reader) ([]*models.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	textCol, okText := cols["text"]
	fileCol, okFile := cols["file_id"]
	intervalCol, okInterval := cols["interval"]
	caseCol, okCase := -1, false
	for _, name := range caseNameColumns {
		if i, ok := cols[name]; ok {
			caseCol, okCase = i, true
			break
		}
	}
	var missing []string
	for name, ok := range map[string]bool{"text": okText, "file_id": okFile, "interval": okInterval, "case_name": okCase} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	groups := make(map[groupKey][]string)
	for n, row := range rows[1:] {
		line := strings.TrimSpace(cell(row, textCol))
		if line == "" {
			continue
		}
		if ld.deidentify {
			line = Deidentify(line)
		}
		fileID, err := intCell(row, fileCol)
		if err != nil {
			return nil, fmt.Errorf("row %d file_id: %w", n+2, err)
		}
		interval, err := intCell(row, intervalCol)
		if err != nil {
			return nil, fmt.Errorf("row %d interval: %w", n+2, err)
		}
		key := groupKey{fileID: fileID, interval: interval, caseName: strings.TrimSpace(cell(row, caseCol))}
		groups[key] = append(groups[key], line)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.fileID != b.fileID {
			return a.fileID < b.fileID
		}
		if a.interval != b.interval {
			return a.interval < b.interval
		}
		return a.caseName < b.caseName
	})

	docs := make([]*models.Document, 0, len(keys))
	for _, k := range keys {
		fileID, interval := strconv.Itoa(k.fileID), strconv.Itoa(k.interval)
		text := fmt.Sprintf("file_id: %s\ninterval: %s\ncase_name: %s\ncontent:\n%s",
			fileID, interval, k.caseName, strings.Join(groups[k], "\n"))
		docs = append(docs, &models.Document{
			ID:       contentid.ForParts(fileID, interval, k.caseName),
			Category: k.caseName,
			Text:     text,
			Metadata: map[string]interface{}{"file_id": fileID, "interval": interval},
		})
	}
	return docs, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func intCell(row []string, i int) (int, error) {
	s := strings.TrimSpace(cell(row, i))
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
