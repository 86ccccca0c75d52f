package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestMetricSet(t *testing.T) {
	convey.Convey("Given a partial metric set", t, func() {
		five := 5
		partial := model.PartialMetricSet{Quality: &five}

		convey.Convey("When merged", func() {
			set := partial.Merge()

			convey.Convey("Then absent metrics default to the midpoint", func() {
				convey.So(set.Quality, convey.ShouldEqual, 5)
				convey.So(set.Service, convey.ShouldEqual, model.MidMetric)
				convey.So(set.BreakExceeds, convey.ShouldEqual, model.MidMetric)
				convey.So(set.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a metric is out of range", func() {
			set := model.UniformMetrics(3)
			set.Set(model.MetricLateness, 6)
			err := set.Validate()

			convey.Convey("Then validation names it", func() {
				convey.So(model.IsValidation(err), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "lateness")
			})
		})
	})
}

func TestMetricNames(t *testing.T) {
	convey.Convey("Given metric names in several spellings", t, func() {
		for _, in := range []string{"break_exceeds", "breakExceeds", "Break Exceeds", " BREAK-EXCEEDS "} {
			m, ok := model.ParseMetric(in)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(m, convey.ShouldEqual, model.MetricBreakExceeds)
		}
		_, ok := model.ParseMetric("speed")
		convey.So(ok, convey.ShouldBeFalse)
		convey.So(model.MetricBreakExceeds.Label(), convey.ShouldEqual, "Break Exceeds")
	})
}

func TestWeights(t *testing.T) {
	convey.Convey("Given weight overrides", t, func() {
		w, err := model.WeightsFromMap(map[string]float64{"quality": 2, "breakExceeds": 0})

		convey.So(err, convey.ShouldBeNil)
		convey.So(w.Quality, convey.ShouldEqual, 2)
		convey.So(w.BreakExceeds, convey.ShouldEqual, 0)
		convey.So(w.Sum(), convey.ShouldEqual, 8)

		_, err = model.WeightsFromMap(map[string]float64{"quality": -1})
		convey.So(model.IsValidation(err), convey.ShouldBeTrue)

		_, err = model.WeightsFromMap(map[string]float64{"speed": 1})
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestPeriod(t *testing.T) {
	convey.Convey("Given periods", t, func() {
		p, err := model.ParsePeriod("2024-03")
		convey.So(err, convey.ShouldBeNil)
		convey.So(p, convey.ShouldResemble, model.Period{Month: 3, Year: 2024})
		convey.So(p.String(), convey.ShouldEqual, "2024-03")
		convey.So(model.Period{Month: 1, Year: 2024}.Prev(), convey.ShouldResemble, model.Period{Month: 12, Year: 2023})
		convey.So(model.Period{Month: 12, Year: 2023}.Before(p), convey.ShouldBeTrue)

		convey.So(model.Period{Month: 13, Year: 2024}.Validate(), convey.ShouldNotBeNil)
		convey.So(model.Period{Month: 1, Year: 1999}.Validate(), convey.ShouldNotBeNil)
		_, err = model.ParsePeriod("March")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestScorecardRecordJSON(t *testing.T) {
	convey.Convey("Given a scorecard record", t, func() {
		rec := model.ScorecardRecord{AgentID: "a1", Month: 2, Year: 2024, MetricSet: model.UniformMetrics(4), Percentage: 80}

		raw, err := json.Marshal(rec)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then metrics are flattened next to the key", func() {
			var m map[string]any
			convey.So(json.Unmarshal(raw, &m), convey.ShouldBeNil)
			convey.So(m["agentId"], convey.ShouldEqual, "a1")
			convey.So(m["breakExceeds"], convey.ShouldEqual, 4)
			convey.So(m["percentage"], convey.ShouldEqual, 80)
			convey.So(rec.Period(), convey.ShouldResemble, model.Period{Month: 2, Year: 2024})
		})
	})
}
