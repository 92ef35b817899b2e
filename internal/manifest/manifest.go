// Package manifest parses inventory manifests into gradable items. Both
// XLSX workbooks and CSV exports are supported; columns are matched by
// header name, so column order does not matter.
package manifest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/slabworks/grade-cli/internal/model"
)

// Options configures manifest parsing.
type Options struct {
	SheetIndex int    // XLSX: sheet position, default 0
	SheetName  string // XLSX: if set, overrides SheetIndex
	Charset    string // CSV: IANA charset name, default utf-8
}

// ReadXLSX parses an XLSX manifest into items.
func ReadXLSX(path string, opts Options) ([]model.GradableItem, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}

	return fromRows(header, rows)
}

// ReadCSV parses a CSV manifest into items. Legacy exports in encodings
// like windows-1252 are handled via the Charset option.
func ReadCSV(path string, opts Options) ([]model.GradableItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open csv")
	}
	defer f.Close()

	var reader io.Reader = f
	if opts.Charset != "" && !strings.EqualFold(opts.Charset, "utf-8") {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "manifest: unknown charset %q", opts.Charset)
		}
		reader = enc.NewDecoder().Reader(f)
	}

	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "manifest: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("manifest: empty csv")
	}

	return fromRows(records[0], records[1:])
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("manifest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("manifest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

// fromRows maps header-addressed rows to items. Title and issue columns are
// required; fully empty rows are skipped.
func fromRows(header []string, rows [][]string) ([]model.GradableItem, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}

	titleCol, ok := cols["title"]
	if !ok {
		return nil, eris.New("manifest: missing title column")
	}
	issueCol, ok := cols["issue"]
	if !ok {
		return nil, eris.New("manifest: missing issue column")
	}

	cell := func(row []string, idx int, ok bool) string {
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	pubCol, pubOK := lookupAny(cols, "publisher")
	yearCol, yearOK := lookupAny(cols, "year", "cover_year")
	keyCol, keyOK := lookupAny(cols, "key_issue", "key")
	defectsCol, defectsOK := lookupAny(cols, "known_defects", "defects")

	now := time.Now().UTC()
	var items []model.GradableItem
	for _, row := range rows {
		title := cell(row, titleCol, true)
		issue := cell(row, issueCol, true)
		if title == "" && issue == "" {
			continue
		}

		item := model.GradableItem{
			ID:        uuid.New().String(),
			Title:     title,
			Issue:     issue,
			Publisher: cell(row, pubCol, pubOK),
			KeyIssue:  parseBool(cell(row, keyCol, keyOK)),
			Status:    model.ItemStatusUngraded,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if y := cell(row, yearCol, yearOK); y != "" {
			item.Year, _ = strconv.Atoi(y)
		}
		if d := cell(row, defectsCol, defectsOK); d != "" {
			item.KnownDefects = splitDefects(d)
		}
		items = append(items, item)
	}

	return items, nil
}

func lookupAny(cols map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := cols[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func splitDefects(s string) []string {
	var defects []string
	for _, d := range strings.Split(s, ";") {
		if d = strings.TrimSpace(d); d != "" {
			defects = append(defects, d)
		}
	}
	return defects
}
