package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorecard/internal/adapters/http/api"
	"github.com/okian/scorecard/internal/adapters/repository"
	service "github.com/okian/scorecard/internal/app"
	"github.com/okian/scorecard/internal/domain/bulk"
	"github.com/okian/scorecard/internal/domain/model"
)

func fixedNow() time.Time { return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC) }

func newServer(opts ...service.Option) (http.Handler, *service.Service) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	for _, a := range []model.Agent{
		{ID: "mgr", Email: "mgr@example.com", Name: "Manager", Role: model.RoleManager},
		{ID: "tl-1", Email: "tl1@example.com", Name: "Lead One", Role: model.RoleTeamLeader, ManagerID: "mgr"},
		{ID: "a-1", Email: "ana@example.com", EmployeeID: "E-1", Name: "Ana", TeamLeaderID: "tl-1"},
		{ID: "a-2", Email: "ben@example.com", EmployeeID: "E-2", Name: "Ben", TeamLeaderID: "tl-1"},
	} {
		if _, err := store.SaveAgent(ctx, a); err != nil {
			panic(err)
		}
	}
	svc := service.New(store, opts...)
	srv := api.NewServer(svc, api.WithClock(fixedNow), api.WithLimits(12, 10), api.WithMaxBodyBytes(1<<20))
	return srv.Handler(), svc
}

func do(h http.Handler, method, target string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(rec.Body.Bytes(), v), ShouldBeNil)
}

func errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body.Code
}

func csvFile(rows ...string) []byte {
	return []byte(strings.Join(append([]string{strings.Join(bulk.ImportHeader(), ",")}, rows...), "\n") + "\n")
}

func TestScorecardEndpoints(t *testing.T) {
	Convey("Given an API over a seeded service", t, func() {
		h, _ := newServer()

		Convey("When a partial scorecard is submitted", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3",
				[]byte(`{"service":5,"productivity":5,"notes":" first "}`),
				"Content-Type", "application/json", api.HeaderActorID, "tl-1")

			Convey("Then missing metrics default to the midpoint", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var out model.ScorecardRecord
				decode(rec, &out)
				So(out.AgentID, ShouldEqual, "a-1")
				So(out.Month, ShouldEqual, 3)
				So(out.Quality, ShouldEqual, model.MidMetric)
				So(out.Percentage, ShouldEqual, 65)
			})

			Convey("And the metrics read reflects it", func() {
				rec := do(h, http.MethodGet, "/api/v1/agents/a-1/metrics?limit=6", nil)
				So(rec.Code, ShouldEqual, http.StatusOK)
				var m model.AgentMetrics
				decode(rec, &m)
				So(len(m.Series), ShouldEqual, 1)
				So(m.Trend.CurrentPercentage, ShouldEqual, 65)
				So(m.Trend.SessionCount, ShouldEqual, 1)
			})

			Convey("And resubmitting overwrites the same month", func() {
				rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3",
					[]byte(`{"service":5,"productivity":5,"quality":5,"assiduity":5,"performance":5,"adherence":5,"lateness":5,"breakExceeds":5}`))
				So(rec.Code, ShouldEqual, http.StatusOK)

				var m model.AgentMetrics
				decode(do(h, http.MethodGet, "/api/v1/agents/a-1/metrics", nil), &m)
				So(len(m.Series), ShouldEqual, 1)
				So(m.Series[0].Percentage, ShouldEqual, 100)
			})
		})

		Convey("When a metric is out of range", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3", []byte(`{"quality":6}`))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "bad_request")
		})

		Convey("When the body has unknown fields", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3", []byte(`{"speed":3}`))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the month is invalid", func() {
			So(do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/13", []byte(`{}`)).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/1999/1", []byte(`{}`)).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/abc/1", []byte(`{}`)).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When weights are negative", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3",
				[]byte(`{"weights":{"service":-1,"productivity":1,"quality":1,"assiduity":1,"performance":1,"adherence":1,"lateness":1,"breakExceeds":1}}`))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When only some weights are overridden", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3",
				[]byte(`{"service":5,"weights":{"quality":2}}`))

			Convey("Then the other weights keep their 1.0 default", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var out model.ScorecardRecord
				decode(rec, &out)
				So(out.Weights.Quality, ShouldEqual, 2)
				So(out.Weights.Service, ShouldEqual, 1)
				So(out.Weights.BreakExceeds, ShouldEqual, 1)
				So(out.TotalScore, ShouldEqual, 29)
				So(out.Percentage, ShouldEqual, 64.44)
			})
		})

		Convey("When a weight names an unknown metric", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3", []byte(`{"weights":{"speed":2}}`))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "bad_request")
		})

		Convey("When the agent is unknown", func() {
			rec := do(h, http.MethodPut, "/api/v1/agents/ghost/scorecards/2024/3", []byte(`{}`))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(rec), ShouldEqual, "not_found")
			So(do(h, http.MethodGet, "/api/v1/agents/ghost/metrics", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the series limit is above the maximum", func() {
			rec := do(h, http.MethodGet, "/api/v1/agents/a-1/metrics?limit=13", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "limit_exceeded")
			So(do(h, http.MethodGet, "/api/v1/agents/a-1/metrics?limit=0", nil).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAgentEndpoints(t *testing.T) {
	Convey("Given an API over a seeded service", t, func() {
		h, _ := newServer()

		Convey("When listing agents", func() {
			rec := do(h, http.MethodGet, "/api/v1/agents", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var out struct {
				Count int `json:"count"`
			}
			decode(rec, &out)
			So(out.Count, ShouldEqual, 4)
		})

		Convey("When saving a new agent", func() {
			rec := do(h, http.MethodPost, "/api/v1/agents",
				[]byte(`{"id":"a-9","email":"Zoe@Example.com","name":"Zoe","teamLeaderId":"tl-1"}`))

			Convey("Then it can be read back with the default role", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Location"), ShouldEqual, "/api/v1/agents/a-9")

				var a model.AgentSummary
				decode(do(h, http.MethodGet, "/api/v1/agents/a-9", nil), &a)
				So(a.Email, ShouldEqual, "zoe@example.com")
				So(a.Role, ShouldEqual, model.RoleAgent)
				So(a.LatestPercentage, ShouldBeNil)
			})
		})

		Convey("When an agent is saved with a partial weight set", func() {
			rec := do(h, http.MethodPost, "/api/v1/agents",
				[]byte(`{"id":"a-8","name":"Yan","teamLeaderId":"tl-1","weights":{"breakExceeds":0}}`))

			Convey("Then the named weight is set and the rest default to 1", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var a model.Agent
				decode(rec, &a)
				So(a.Weights, ShouldNotBeNil)
				So(a.Weights.BreakExceeds, ShouldEqual, 0)
				So(a.Weights.Service, ShouldEqual, 1)
				So(a.Weights.Lateness, ShouldEqual, 1)
			})
		})

		Convey("When the agent body is invalid", func() {
			So(do(h, http.MethodPost, "/api/v1/agents", []byte(`{"id":"x"}`)).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/api/v1/agents", []byte(`{"id":"x","name":"X","role":"king"}`)).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/api/v1/agents", []byte(`{"id":"x","name":"X","email":"nope"}`)).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading an unknown agent", func() {
			So(do(h, http.MethodGet, "/api/v1/agents/ghost", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRollupEndpoints(t *testing.T) {
	Convey("Given scored agents in March", t, func() {
		h, _ := newServer()
		So(do(h, http.MethodPut, "/api/v1/agents/a-1/scorecards/2024/3", []byte(`{"service":5,"productivity":5,"quality":5,"assiduity":5,"performance":5,"adherence":5,"lateness":5,"breakExceeds":5}`)).Code, ShouldEqual, http.StatusOK)
		So(do(h, http.MethodPut, "/api/v1/agents/a-2/scorecards/2024/3", []byte(`{"service":1,"productivity":1,"quality":1,"assiduity":1,"performance":1,"adherence":1,"lateness":1,"breakExceeds":1}`)).Code, ShouldEqual, http.StatusOK)

		Convey("When reading the team roll-up for the current month", func() {
			rec := do(h, http.MethodGet, "/api/v1/teams/tl-1/rollup", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var tr model.TeamRollup
			decode(rec, &tr)
			So(tr.Period, ShouldResemble, model.Period{Month: 3, Year: 2024})
			So(tr.AgentCount, ShouldEqual, 2)
			So(tr.AveragePercentage, ShouldEqual, 60)
		})

		Convey("When reading the manager roll-up for an explicit period", func() {
			rec := do(h, http.MethodGet, "/api/v1/managers/mgr/rollup?month=3&year=2024", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var mr model.ManagerRollup
			decode(rec, &mr)
			So(mr.TeamCount, ShouldEqual, 1)
			So(mr.AveragePercentage, ShouldEqual, 60)
		})

		Convey("When only one of month and year is given", func() {
			So(do(h, http.MethodGet, "/api/v1/teams/tl-1/rollup?month=3", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading the leaderboard", func() {
			rec := do(h, http.MethodGet, "/api/v1/leaderboard?month=3&year=2024&limit=5", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var out struct {
				Count   int                 `json:"count"`
				Entries []model.RankedAgent `json:"entries"`
			}
			decode(rec, &out)
			So(out.Count, ShouldEqual, 2)
			So(out.Entries[0].AgentID, ShouldEqual, "a-1")
			So(out.Entries[0].Rank, ShouldEqual, 1)
			So(out.Entries[0].Name, ShouldEqual, "Ana")
			So(out.Entries[1].Rank, ShouldEqual, 2)
		})

		Convey("When the leaderboard limit is too large", func() {
			rec := do(h, http.MethodGet, "/api/v1/leaderboard?limit=11", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "limit_exceeded")
		})
	})
}

func TestImportExportEndpoints(t *testing.T) {
	Convey("Given an API over a seeded service", t, func() {
		h, svc := newServer(service.WithQueueSize(4))

		Convey("When a CSV is posted as the raw body", func() {
			rec := do(h, http.MethodPost, "/api/v1/imports", csvFile(
				"ana@example.com,3,2024,5,5,5,5,5,5,5,5,great",
				"nobody@example.com,3,2024,5,5,5,5,5,5,5,5,",
			), "Content-Type", "text/csv")

			Convey("Then good rows are applied and bad rows reported", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var res model.ImportResult
				decode(rec, &res)
				So(res.Imported, ShouldEqual, 1)
				So(res.Total, ShouldEqual, 2)
				So(len(res.Errors), ShouldEqual, 1)
			})

			Convey("And an export returns the applied row as a download", func() {
				rec := do(h, http.MethodGet, "/api/v1/exports?format=csv&from=2024-01&to=2024-12", nil)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(rec.Header().Get("Content-Disposition"), ShouldContainSubstring, "attachment;")
				So(rec.Header().Get("X-Record-Count"), ShouldEqual, "1")
				So(rec.Body.String(), ShouldContainSubstring, "ana@example.com")
			})
		})

		Convey("When a file is uploaded as multipart form data", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", "march.csv")
			So(err, ShouldBeNil)
			_, _ = part.Write(csvFile("E-2,3,2024,4,4,4,4,4,4,4,4,"))
			So(mw.Close(), ShouldBeNil)

			rec := do(h, http.MethodPost, "/api/v1/imports", buf.Bytes(), "Content-Type", mw.FormDataContentType())
			So(rec.Code, ShouldEqual, http.StatusOK)
			var res model.ImportResult
			decode(rec, &res)
			So(res.Imported, ShouldEqual, 1)
			So(res.Success, ShouldBeTrue)
		})

		Convey("When the upload is empty or in an unknown format", func() {
			So(do(h, http.MethodPost, "/api/v1/imports", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/api/v1/imports?format=ods", csvFile()).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an export range is malformed", func() {
			So(do(h, http.MethodGet, "/api/v1/exports?from=March", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/v1/exports?from=2024-05&to=2024-01", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an import is submitted asynchronously", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			file := csvFile("a-1,2,2024,3,3,3,3,3,3,3,3,")
			rec := do(h, http.MethodPost, "/api/v1/imports?async=true", file, "Content-Type", "text/csv")
			So(rec.Code, ShouldEqual, http.StatusAccepted)

			var accepted struct {
				Job       model.ImportJob `json:"job"`
				Duplicate bool            `json:"duplicate"`
			}
			decode(rec, &accepted)
			So(accepted.Duplicate, ShouldBeFalse)
			So(rec.Header().Get("Location"), ShouldEqual, "/api/v1/imports/"+accepted.Job.ID)

			Convey("Then the job can be polled until it completes", func() {
				var job model.ImportJob
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					decode(do(h, http.MethodGet, "/api/v1/imports/"+accepted.Job.ID, nil), &job)
					if job.Status.Terminal() {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(job.Status, ShouldEqual, model.JobCompleted)
				So(job.Result, ShouldNotBeNil)
				So(job.Result.Imported, ShouldEqual, 1)
			})
		})

		Convey("When polling an unknown job", func() {
			So(do(h, http.MethodGet, "/api/v1/imports/nope", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an API over a seeded service", t, func() {
		h, _ := newServer()

		Convey("Then health reports the store", func() {
			rec := do(h, http.MethodGet, "/healthz", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then stats are served", func() {
			rec := do(h, http.MethodGet, "/stats", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			decode(rec, &stats)
			So(stats["agents"], ShouldEqual, float64(4))
		})

		Convey("Then Prometheus metrics are exposed", func() {
			do(h, http.MethodGet, "/api/v1/agents", nil)
			rec := do(h, http.MethodGet, "/metrics", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "scorecard_engine_http_requests_total")
		})

		Convey("Then CORS preflights are answered", func() {
			rec := do(h, http.MethodOptions, "/api/v1/agents", nil,
				"Origin", "https://dashboard.example.com",
				"Access-Control-Request-Method", http.MethodGet)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then unknown routes are 404", func() {
			So(do(h, http.MethodGet, "/api/v1/nothing", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestActorMiddleware(t *testing.T) {
	Convey("Given a handler behind the actor middleware", t, func() {
		var got api.Actor
		h := api.ActorMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = api.ActorFrom(r.Context())
		}))

		Convey("When actor headers are present", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(api.HeaderActorID, " tl-1 ")
			req.Header.Set(api.HeaderActorRole, "Team_Leader")
			h.ServeHTTP(httptest.NewRecorder(), req)

			So(got.ID, ShouldEqual, "tl-1")
			So(got.Role, ShouldEqual, model.RoleTeamLeader)
		})

		Convey("When they are absent the actor is empty", func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			So(got, ShouldResemble, api.Actor{})
		})
	})
}
