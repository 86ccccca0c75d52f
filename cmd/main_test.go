package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorecard/internal/adapters/repository"
	"github.com/okian/scorecard/internal/config"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		ctx := context.Background()

		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("SCORECARD_ADDR", ":8080")
			_ = os.Setenv("SCORECARD_IMPORT_QUEUE_SIZE", "16")
			_ = os.Setenv("SCORECARD_IMPORT_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("SCORECARD_ADDR")
				_ = os.Unsetenv("SCORECARD_IMPORT_QUEUE_SIZE")
				_ = os.Unsetenv("SCORECARD_IMPORT_WORKER_COUNT")
			}()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.ImportQueueSize, convey.ShouldEqual, 16)
			convey.So(cfg.ImportWorkerCount, convey.ShouldEqual, 4)
		})

		convey.Convey("When opening the configured store", func() {
			cfg := config.New(ctx)

			store, err := openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			_, isMemory := store.(*repository.MemoryStore)
			convey.So(isMemory, convey.ShouldBeTrue)

			cfg.StoreDriver = "sqlite"
			_, err = openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "sqlite")
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the assembled router", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		svc := newService(cfg, repository.NewMemoryStore(), logger.Nop())
		h := newRouter(cfg, svc, logger.Nop())

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			return rec
		}

		convey.Convey("Then the API, docs and landing page are all served", func() {
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api/v1/agents").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then runtime collectors can be registered more than once", func() {
			convey.So(func() {
				registerRuntimeCollectors()
				registerRuntimeCollectors()
			}, convey.ShouldNotPanic)
			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(families), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration on an ephemeral port", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		cfg.ImportWorkerCount = 1

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(run(ctx, cfg, logger.Nop()), convey.ShouldBeNil)
			})
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a service", t, func() {
		cfg := config.New(context.Background())
		svc := newService(cfg, repository.NewMemoryStore(), logger.Nop())

		convey.Convey("Then the updater returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
