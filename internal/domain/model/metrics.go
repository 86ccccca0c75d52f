// Package model contains domain models passed between layers.
package model

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Raw metric scale.
const (
	MinMetric = 1
	MaxMetric = 5
	MidMetric = 3
)

// Metric names one of the eight scored dimensions.
type Metric string

const (
	MetricService      Metric = "service"
	MetricProductivity Metric = "productivity"
	MetricQuality      Metric = "quality"
	MetricAssiduity    Metric = "assiduity"
	MetricPerformance  Metric = "performance"
	MetricAdherence    Metric = "adherence"
	MetricLateness     Metric = "lateness"
	MetricBreakExceeds Metric = "break_exceeds"
)

// Metrics lists every metric in column order.
var Metrics = []Metric{ //nolint:gochecknoglobals // fixed ordering shared by codecs
	MetricService, MetricProductivity, MetricQuality, MetricAssiduity,
	MetricPerformance, MetricAdherence, MetricLateness, MetricBreakExceeds,
}

// Label is the spreadsheet column header, e.g. "Break Exceeds".
func (m Metric) Label() string {
	words := strings.Split(string(m), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseMetric accepts snake_case, camelCase or the column label.
func ParseMetric(s string) (Metric, bool) {
	norm := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(s)))
	for _, m := range Metrics {
		if strings.ReplaceAll(string(m), "_", "") == norm {
			return m, true
		}
	}
	return "", false
}

// MetricSet holds the eight raw scores, each in [1,5].
type MetricSet struct {
	Service      int `json:"service"`
	Productivity int `json:"productivity"`
	Quality      int `json:"quality"`
	Assiduity    int `json:"assiduity"`
	Performance  int `json:"performance"`
	Adherence    int `json:"adherence"`
	Lateness     int `json:"lateness"`
	BreakExceeds int `json:"breakExceeds"`
}

func (s *MetricSet) field(m Metric) *int {
	switch m {
	case MetricService:
		return &s.Service
	case MetricProductivity:
		return &s.Productivity
	case MetricQuality:
		return &s.Quality
	case MetricAssiduity:
		return &s.Assiduity
	case MetricPerformance:
		return &s.Performance
	case MetricAdherence:
		return &s.Adherence
	case MetricLateness:
		return &s.Lateness
	case MetricBreakExceeds:
		return &s.BreakExceeds
	}
	return nil
}

// Get returns the raw score for m, or 0 for an unknown metric.
func (s MetricSet) Get(m Metric) int {
	if p := s.field(m); p != nil {
		return *p
	}
	return 0
}

// Set assigns the raw score for m; unknown metrics are ignored.
func (s *MetricSet) Set(m Metric, v int) {
	if p := s.field(m); p != nil {
		*p = v
	}
}

// UniformMetrics returns a set with every metric equal to v.
func UniformMetrics(v int) MetricSet {
	var s MetricSet
	for _, m := range Metrics {
		s.Set(m, v)
	}
	return s
}

// Validate checks every metric is within [1,5].
func (s MetricSet) Validate() error {
	for _, m := range Metrics {
		if v := s.Get(m); v < MinMetric || v > MaxMetric {
			return errors.Mark(errors.Newf("%s must be between %d and %d, got %d", m, MinMetric, MaxMetric, v), ErrValidation)
		}
	}
	return nil
}

// PartialMetricSet is legacy or partial input where any metric may be absent.
type PartialMetricSet struct {
	Service      *int `json:"service,omitempty"`
	Productivity *int `json:"productivity,omitempty"`
	Quality      *int `json:"quality,omitempty"`
	Assiduity    *int `json:"assiduity,omitempty"`
	Performance  *int `json:"performance,omitempty"`
	Adherence    *int `json:"adherence,omitempty"`
	Lateness     *int `json:"lateness,omitempty"`
	BreakExceeds *int `json:"breakExceeds,omitempty"`
}

// Merge fills absent metrics with the scale midpoint.
func (p PartialMetricSet) Merge() MetricSet {
	pick := func(v *int) int {
		if v == nil {
			return MidMetric
		}
		return *v
	}
	return MetricSet{
		Service:      pick(p.Service),
		Productivity: pick(p.Productivity),
		Quality:      pick(p.Quality),
		Assiduity:    pick(p.Assiduity),
		Performance:  pick(p.Performance),
		Adherence:    pick(p.Adherence),
		Lateness:     pick(p.Lateness),
		BreakExceeds: pick(p.BreakExceeds),
	}
}

// WeightSet holds one non-negative multiplier per metric.
type WeightSet struct {
	Service      float64 `json:"service"`
	Productivity float64 `json:"productivity"`
	Quality      float64 `json:"quality"`
	Assiduity    float64 `json:"assiduity"`
	Performance  float64 `json:"performance"`
	Adherence    float64 `json:"adherence"`
	Lateness     float64 `json:"lateness"`
	BreakExceeds float64 `json:"breakExceeds"`
}

// DefaultWeights weights every metric equally at 1.0.
func DefaultWeights() WeightSet {
	var w WeightSet
	for _, m := range Metrics {
		w.Set(m, 1)
	}
	return w
}

func (w *WeightSet) field(m Metric) *float64 {
	switch m {
	case MetricService:
		return &w.Service
	case MetricProductivity:
		return &w.Productivity
	case MetricQuality:
		return &w.Quality
	case MetricAssiduity:
		return &w.Assiduity
	case MetricPerformance:
		return &w.Performance
	case MetricAdherence:
		return &w.Adherence
	case MetricLateness:
		return &w.Lateness
	case MetricBreakExceeds:
		return &w.BreakExceeds
	}
	return nil
}

// Get returns the weight for m.
func (w WeightSet) Get(m Metric) float64 {
	if p := w.field(m); p != nil {
		return *p
	}
	return 0
}

// Set assigns the weight for m.
func (w *WeightSet) Set(m Metric, v float64) {
	if p := w.field(m); p != nil {
		*p = v
	}
}

// Sum adds all eight weights.
func (w WeightSet) Sum() float64 {
	var total float64
	for _, m := range Metrics {
		total += w.Get(m)
	}
	return total
}

// Validate rejects negative weights. An all-zero set is valid.
func (w WeightSet) Validate() error {
	for _, m := range Metrics {
		if w.Get(m) < 0 {
			return errors.Mark(errors.Newf("weight for %s must not be negative", m), ErrValidation)
		}
	}
	return nil
}

// WeightsFromMap overlays the named weights onto the defaults.
func WeightsFromMap(in map[string]float64) (WeightSet, error) {
	w := DefaultWeights()
	for name, v := range in {
		m, ok := ParseMetric(name)
		if !ok {
			return WeightSet{}, errors.Mark(errors.Newf("unknown metric %q", name), ErrValidation)
		}
		w.Set(m, v)
	}
	return w, w.Validate()
}
