// Package spreadsheet reads and writes bulk tables as CSV or XLSX.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/okian/scorecard/internal/domain/bulk"
)

// Format names.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet exports are written to.
const SheetName = "Scorecards"

// zipMagic starts every XLSX file (a zip archive).
var zipMagic = []byte("PK\x03\x04") //nolint:gochecknoglobals // constant byte signature

// Codec converts between raw bytes and a bulk table.
type Codec interface {
	Decode(data []byte) (bulk.Table, error)
	Encode(w io.Writer, t bulk.Table) error
	ContentType() string
	Extension() string
}

// ForFormat returns the codec for "csv" or "xlsx".
func ForFormat(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case FormatCSV, "":
		return CSV{}, nil
	case FormatXLSX:
		return XLSX{}, nil
	default:
		return nil, errors.Wrapf(bulk.ErrUnsupportedFormat, "format %q", name)
	}
}

// Detect picks a codec from the content: zip archives are XLSX, everything else CSV.
func Detect(data []byte) (Codec, string) {
	if bytes.HasPrefix(data, zipMagic) {
		return XLSX{}, FormatXLSX
	}
	return CSV{}, FormatCSV
}

// Decode detects the format and decodes data.
func Decode(data []byte) (bulk.Table, string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return bulk.Table{}, "", bulk.ErrEmptyFile
	}
	c, name := Detect(data)
	t, err := c.Decode(data)
	return t, name, err
}

func split(records [][]string) (bulk.Table, error) {
	if len(records) == 0 {
		return bulk.Table{}, bulk.ErrEmptyFile
	}
	return bulk.Table{Header: records[0], Rows: records[1:]}, nil
}

// CSV is a comma separated codec. A UTF-8 byte order mark is ignored.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Extension() string { return "." + FormatCSV }

// Decode reads record by record. A data line that cannot be parsed becomes a
// malformed row and reading continues with the next line; a broken header
// rejects the file.
func (CSV) Decode(data []byte) (bulk.Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var t bulk.Table
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if t.Header != nil && errors.As(err, &perr) {
				t.AddMalformed(errors.Wrap(perr.Err, "malformed line"))
				continue
			}
			return bulk.Table{}, errors.Mark(errors.Wrap(err, "parse csv"), bulk.ErrUnsupportedFormat)
		}
		if t.Header == nil {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return bulk.Table{}, bulk.ErrEmptyFile
	}
	return t, nil
}

func (CSV) Encode(w io.Writer, t bulk.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	return nil
}

// XLSX reads the first worksheet of a workbook and writes a single sheet.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Extension() string { return "." + FormatXLSX }

func (XLSX) Decode(data []byte) (bulk.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return bulk.Table{}, errors.Mark(errors.Wrap(err, "open workbook"), bulk.ErrUnsupportedFormat)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return bulk.Table{}, bulk.ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return bulk.Table{}, errors.Wrapf(err, "read sheet %q", sheets[0])
	}
	return split(rows)
}

func (XLSX) Encode(w io.Writer, t bulk.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return errors.Wrap(err, "name sheet")
	}
	all := append([][]string{t.Header}, t.Rows...)
	for i, row := range all {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cellRef, &values); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}
