package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)

		Convey("When logging a message with fields", func() {
			Named("cache").Info(context.Background(), "cache miss",
				String("key", "agent-metrics:42"),
				Int("size", 3),
				Bool("coalesced", false),
				Duration("ttl", time.Minute),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries every field", func() {
				var record map[string]any
				So(json.Unmarshal(buf.Bytes(), &record), ShouldBeNil)
				So(record["msg"], ShouldEqual, "cache miss")
				So(record["component"], ShouldEqual, "cache")
				So(record["key"], ShouldEqual, "agent-metrics:42")
				So(record["ttl"], ShouldEqual, "1m0s")
				So(record["error"], ShouldEqual, "boom")
				So(record["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			Get().Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When fields are attached with With", func() {
			Get().With(String("job_id", "j-1")).Warn(context.Background(), "slow import")

			Convey("Then they appear on the record", func() {
				So(buf.String(), ShouldContainSubstring, `"job_id":"j-1"`)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " ERROR "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		err := SetLevelString("verbose")
		So(err, ShouldNotBeNil)
		So(strings.Contains(err.Error(), "verbose"), ShouldBeTrue)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()
		So(func() { l.Named("x").Error(context.Background(), "dropped") }, ShouldNotPanic)
	})
}
