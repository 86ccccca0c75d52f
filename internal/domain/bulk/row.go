package bulk

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
)

// ImportRow is one spreadsheet line after parsing and schema validation.
// Nothing reaches the calculator before Validate accepts it.
type ImportRow struct {
	Line       int    `validate:"-"`
	Identifier string `col:"Agent Email or Employee ID" validate:"required,max=320"`
	Month      int    `col:"Month" validate:"min=1,max=12"`
	Year       int    `col:"Year" validate:"min=2000,max=2100"`

	Service      int `col:"Service" validate:"min=1,max=5"`
	Productivity int `col:"Productivity" validate:"min=1,max=5"`
	Quality      int `col:"Quality" validate:"min=1,max=5"`
	Assiduity    int `col:"Assiduity" validate:"min=1,max=5"`
	Performance  int `col:"Performance" validate:"min=1,max=5"`
	Adherence    int `col:"Adherence" validate:"min=1,max=5"`
	Lateness     int `col:"Lateness" validate:"min=1,max=5"`
	BreakExceeds int `col:"Break Exceeds" validate:"min=1,max=5"`

	Notes   string           `col:"Notes" validate:"max=2000"`
	Weights *model.WeightSet `validate:"-"`
}

// Metrics returns the row's metric set.
func (r ImportRow) Metrics() model.MetricSet {
	return model.MetricSet{
		Service: r.Service, Productivity: r.Productivity, Quality: r.Quality, Assiduity: r.Assiduity,
		Performance: r.Performance, Adherence: r.Adherence, Lateness: r.Lateness, BreakExceeds: r.BreakExceeds,
	}
}

// Period returns the row's (month, year).
func (r ImportRow) Period() model.Period { return model.Period{Month: r.Month, Year: r.Year} }

func (r *ImportRow) setMetric(m model.Metric, v int) {
	switch m {
	case model.MetricService:
		r.Service = v
	case model.MetricProductivity:
		r.Productivity = v
	case model.MetricQuality:
		r.Quality = v
	case model.MetricAssiduity:
		r.Assiduity = v
	case model.MetricPerformance:
		r.Performance = v
	case model.MetricAdherence:
		r.Adherence = v
	case model.MetricLateness:
		r.Lateness = v
	case model.MetricBreakExceeds:
		r.BreakExceeds = v
	}
}

// newValidator reports fields by their column header.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if col := f.Tag.Get("col"); col != "" {
			return col
		}
		return f.Name
	})
	return v
}

// validateRow turns validator output into one readable reason.
func validateRow(v *validator.Validate, row ImportRow) error {
	err := v.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Mark(err, model.ErrValidation)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fe.Field() + " is required"
	case "min", "max":
		if fe.Kind() == reflect.String {
			msg = fe.Field() + " is too long"
		} else {
			msg = fe.Field() + " is out of range: " + strconv.FormatInt(reflect.ValueOf(fe.Value()).Int(), 10)
		}
	default:
		msg = fe.Field() + " is invalid"
	}
	return errors.Mark(errors.New(msg), model.ErrValidation)
}

// parseRow converts raw cells. It only rejects cells that are not numbers;
// ranges are left to validateRow.
func parseRow(line int, cells []string, l layout) (ImportRow, error) {
	row := ImportRow{
		Line:       line,
		Identifier: cell(cells, l.identifier),
		Notes:      unescapeText(cell(cells, l.notes)),
	}

	var err error
	if row.Month, err = parseWhole(ColMonth, cell(cells, l.month)); err != nil {
		return row, err
	}
	if row.Year, err = parseWhole(ColYear, cell(cells, l.year)); err != nil {
		return row, err
	}
	for _, m := range model.Metrics {
		v, err := parseMetric(m.Label(), cell(cells, l.metrics[m]))
		if err != nil {
			return row, err
		}
		row.setMetric(m, v)
	}

	if l.hasWeights() {
		w := model.DefaultWeights()
		for m, i := range l.weights {
			raw := cell(cells, i)
			if raw == "" {
				continue
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return row, errors.Mark(errors.Newf("%s%s is not a number: %q", m.Label(), weightSuffix, raw), model.ErrValidation)
			}
			w.Set(m, f)
		}
		if err := w.Validate(); err != nil {
			return row, err
		}
		row.Weights = &w
	}
	return row, nil
}

// parseMetric accepts a whole number on the 1..5 scale, a percentage with a
// trailing "%" (mapped onto the scale), or a blank cell (the midpoint).
func parseMetric(col, raw string) (int, error) {
	if raw == "" {
		return model.MidMetric, nil
	}
	if pct, ok := strings.CutSuffix(raw, "%"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || math.IsNaN(f) {
			return 0, errors.Mark(errors.Newf("%s is not a percentage: %q", col, raw), model.ErrValidation)
		}
		return scoring.PercentageToMetric(f), nil
	}
	return parseWhole(col, raw)
}

// parseWhole accepts integers and integral decimals such as "3.0", which
// spreadsheet tools like to produce.
func parseWhole(col, raw string) (int, error) {
	if raw == "" {
		return 0, errors.Mark(errors.Newf("%s is required", col), model.ErrValidation)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Mark(errors.Newf("%s is not a number: %q", col, raw), model.ErrValidation)
	}
	if f != math.Trunc(f) {
		return 0, errors.Mark(errors.Newf("%s must be a whole number: %q", col, raw), model.ErrValidation)
	}
	return int(f), nil
}
