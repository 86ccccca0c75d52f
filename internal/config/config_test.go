package config_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/okian/scorecard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.CacheTTLMillis, convey.ShouldEqual, 60_000)
			convey.So(cfg.ImportWorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DefaultSeriesLimit, convey.ShouldEqual, 6)
			convey.So(len(cfg.DefaultWeights), convey.ShouldEqual, 8)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the postgres driver has no database url", func() {
			cfg.StoreDriver = config.StorePostgres
			err := cfg.Validate()

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database_url")
			})
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.StoreDriver = "sqlite"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a default weight is negative", func() {
			cfg.DefaultWeights["quality"] = -1
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When every default weight is zero", func() {
			for k := range cfg.DefaultWeights {
				cfg.DefaultWeights[k] = 0
			}

			convey.Convey("Then it is still accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the default series limit exceeds the maximum", func() {
			cfg.DefaultSeriesLimit = cfg.MaxSeriesLimit + 1
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
