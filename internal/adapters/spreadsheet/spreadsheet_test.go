package spreadsheet_test

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	"github.com/okian/scorecard/internal/domain/bulk"
)

func sample() bulk.Table {
	return bulk.Table{
		Header: bulk.ImportHeader(),
		Rows: [][]string{
			{"ana@example.com", "1", "2024", "5", "4", "3", "2", "1", "2", "3", "4", "needs, commas"},
			{"E-2", "2", "2024", "3", "3", "3", "3", "3", "3", "3", "3", ""},
		},
	}
}

func TestCodecs(t *testing.T) {
	for _, format := range []string{spreadsheet.FormatCSV, spreadsheet.FormatXLSX} {
		Convey("Given the "+format+" codec", t, func() {
			codec, err := spreadsheet.ForFormat(format)
			So(err, ShouldBeNil)

			Convey("When a table is encoded and decoded", func() {
				var buf bytes.Buffer
				So(codec.Encode(&buf, sample()), ShouldBeNil)

				got, detected, err := spreadsheet.Decode(buf.Bytes())

				Convey("Then the table survives and the format is detected", func() {
					So(err, ShouldBeNil)
					So(detected, ShouldEqual, format)
					So(got.Header, ShouldResemble, sample().Header)
					So(got.Rows[0], ShouldResemble, sample().Rows[0])
					So(got.Rows[1][0], ShouldEqual, "E-2")
				})
			})
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	Convey("Given unusable input", t, func() {
		_, _, err := spreadsheet.Decode([]byte("  \n"))
		So(errors.Is(err, bulk.ErrEmptyFile), ShouldBeTrue)

		_, err = spreadsheet.XLSX{}.Decode([]byte("PK\x03\x04 not really a zip"))
		So(errors.Is(err, bulk.ErrUnsupportedFormat), ShouldBeTrue)

		_, err = spreadsheet.CSV{}.Decode([]byte("a,\"b\nc"))
		So(errors.Is(err, bulk.ErrUnsupportedFormat), ShouldBeTrue)

		_, err = spreadsheet.ForFormat("ods")
		So(errors.Is(err, bulk.ErrUnsupportedFormat), ShouldBeTrue)
	})

	Convey("Given a CSV with a byte order mark", t, func() {
		tbl, err := spreadsheet.CSV{}.Decode([]byte("\xef\xbb\xbfMonth,Year\n1,2024\n"))
		So(err, ShouldBeNil)
		So(tbl.Header[0], ShouldEqual, "Month")
		So(tbl.Rows, ShouldHaveLength, 1)
	})
}

func TestCSVMalformedLine(t *testing.T) {
	Convey("Given a CSV whose second data line has a bare quote", t, func() {
		data := []byte("Agent Email,Month,Year,Notes\n" +
			"ana@example.com,1,2024,fine\n" +
			"bo@example.com,1,2024,he said \"hi\"\n" +
			"cy@example.com,1,2024,also fine\n")

		tbl, err := spreadsheet.CSV{}.Decode(data)

		Convey("Then the line becomes a malformed row and decoding continues", func() {
			So(err, ShouldBeNil)
			So(tbl.Rows, ShouldHaveLength, 3)
			So(tbl.Rows[1], ShouldBeNil)
			So(tbl.Malformed, ShouldContainKey, 2)
			So(tbl.Malformed[2].Error(), ShouldContainSubstring, "bare \"")
			So(tbl.Rows[2][0], ShouldEqual, "cy@example.com")
		})
	})
}
