package bulk

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/domain/model"
)

// Column headers shared by import and export.
const (
	ColIdentifier = "Agent Email or Employee ID"
	ColMonth      = "Month"
	ColYear       = "Year"
	ColNotes      = "Notes"
	ColTotal      = "Total Score"
	ColPercentage = "Percentage"
	weightSuffix  = " Weight"
)

// identifierAliases are accepted in place of ColIdentifier.
var identifierAliases = []string{ColIdentifier, "Agent Email", "Employee ID", "Agent"} //nolint:gochecknoglobals // static header aliases

// Table is a decoded spreadsheet: one header row and the data rows below it.
type Table struct {
	Header []string
	Rows   [][]string
	// Malformed holds rows the codec could not split into cells, keyed by
	// data row number. Their slot in Rows is nil.
	Malformed map[int]error
}

// AddMalformed appends a placeholder row that fails with err on import.
func (t *Table) AddMalformed(err error) {
	t.Rows = append(t.Rows, nil)
	if t.Malformed == nil {
		t.Malformed = make(map[int]error)
	}
	t.Malformed[len(t.Rows)] = err
}

// ImportHeader lists the columns an import file carries.
func ImportHeader() []string {
	h := []string{ColIdentifier, ColMonth, ColYear}
	for _, m := range model.Metrics {
		h = append(h, m.Label())
	}
	return append(h, ColNotes)
}

// ExportHeader adds the derived totals and the weights they were computed with.
func ExportHeader() []string {
	h := append(ImportHeader(), ColTotal, ColPercentage)
	for _, m := range model.Metrics {
		h = append(h, m.Label()+weightSuffix)
	}
	return h
}

// layout maps logical columns to positions; -1 means absent.
type layout struct {
	identifier, month, year, notes int
	metrics                        map[model.Metric]int
	weights                        map[model.Metric]int
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimPrefix(s, "\ufeff")), " "))
}

func parseLayout(header []string) (layout, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := pos[key]; !dup && key != "" {
			pos[key] = i
		}
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := pos[normalizeHeader(n)]; ok {
				return i
			}
		}
		return -1
	}

	l := layout{
		identifier: find(identifierAliases...),
		month:      find(ColMonth),
		year:       find(ColYear),
		notes:      find(ColNotes),
		metrics:    make(map[model.Metric]int, len(model.Metrics)),
		weights:    make(map[model.Metric]int),
	}
	for _, m := range model.Metrics {
		l.metrics[m] = find(m.Label(), string(m))
		if i := find(m.Label() + weightSuffix); i >= 0 {
			l.weights[m] = i
		}
	}

	var missing []string
	if l.identifier < 0 {
		missing = append(missing, ColIdentifier)
	}
	if l.month < 0 {
		missing = append(missing, ColMonth)
	}
	if l.year < 0 {
		missing = append(missing, ColYear)
	}
	if len(missing) > 0 {
		return layout{}, errors.Mark(errors.Newf("missing columns: %s", strings.Join(missing, ", ")), ErrMissingColumn)
	}
	return l, nil
}

// hasWeights reports whether the file carries a full weight set.
func (l layout) hasWeights() bool { return len(l.weights) == len(model.Metrics) }

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// formulaLead are the leading characters spreadsheet tools evaluate.
const formulaLead = "=+-@"

// escapeText prefixes free text that a spreadsheet would run as a formula
// with an apostrophe.
func escapeText(s string) string {
	if s != "" && strings.ContainsRune(formulaLead, rune(s[0])) {
		return "'" + s
	}
	return s
}

// unescapeText reverses escapeText.
func unescapeText(s string) string {
	if len(s) > 1 && s[0] == '\'' && strings.ContainsRune(formulaLead, rune(s[1])) {
		return s[1:]
	}
	return s
}
