package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/domain/model"
)

// parsePeriod builds a period from year and month strings.
func parsePeriod(year, month string) (model.Period, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return model.Period{}, badRequest("year", errors.Newf("year %q is not a number", year))
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return model.Period{}, badRequest("month", errors.Newf("month %q is not a number", month))
	}
	p := model.Period{Month: m, Year: y}
	return p, p.Validate()
}

// queryPeriod reads ?month=&year=, defaulting to the current month when both
// are absent.
func (s *Server) queryPeriod(r *http.Request) (model.Period, error) {
	q := r.URL.Query()
	year, month := q.Get("year"), q.Get("month")
	if year == "" && month == "" {
		return model.PeriodOf(s.now()), nil
	}
	if year == "" || month == "" {
		return model.Period{}, badRequest("period", errors.New("month and year must be given together"))
	}
	return parsePeriod(year, month)
}

// queryLimit reads ?limit=. Zero means the service default.
func queryLimit(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest("limit", errors.Newf("limit %q must be a positive integer", raw))
	}
	if n > maxLimit {
		return 0, errors.Wrapf(ErrLimitExceeded, "limit %d, maximum %d", n, maxLimit)
	}
	return n, nil
}

// queryOptionalPeriod parses a YYYY-MM query value, returning nil when absent.
func queryOptionalPeriod(r *http.Request, key string) (*model.Period, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	p, err := model.ParsePeriod(raw)
	if err != nil {
		return nil, badRequest(key, err)
	}
	return &p, nil
}

// queryList collects a repeated or comma-separated query value.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
