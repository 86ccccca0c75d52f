package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/scorecard/internal/app"
	"github.com/okian/scorecard/internal/domain/model"
)

// scorecardRequest is the body of PUT .../scorecards/{year}/{month}. Absent
// metrics default to the scale midpoint.
type scorecardRequest struct {
	Service      *int               `json:"service" validate:"omitempty,min=1,max=5"`
	Productivity *int               `json:"productivity" validate:"omitempty,min=1,max=5"`
	Quality      *int               `json:"quality" validate:"omitempty,min=1,max=5"`
	Assiduity    *int               `json:"assiduity" validate:"omitempty,min=1,max=5"`
	Performance  *int               `json:"performance" validate:"omitempty,min=1,max=5"`
	Adherence    *int               `json:"adherence" validate:"omitempty,min=1,max=5"`
	Lateness     *int               `json:"lateness" validate:"omitempty,min=1,max=5"`
	BreakExceeds *int               `json:"breakExceeds" validate:"omitempty,min=1,max=5"`
	Weights      map[string]float64 `json:"weights"`
	Notes        string             `json:"notes" validate:"max=2000"`
}

func (b scorecardRequest) metrics() model.PartialMetricSet {
	return model.PartialMetricSet{
		Service:      b.Service,
		Productivity: b.Productivity,
		Quality:      b.Quality,
		Assiduity:    b.Assiduity,
		Performance:  b.Performance,
		Adherence:    b.Adherence,
		Lateness:     b.Lateness,
		BreakExceeds: b.BreakExceeds,
	}
}

// handlePutScorecard creates or overwrites the scorecard of one agent for one month.
func (s *Server) handlePutScorecard(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if err != nil {
		s.fail(w, r, "put scorecard", err)
		return
	}

	var body scorecardRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, "put scorecard", err)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, "put scorecard", badRequest("validate", err))
		return
	}

	weights, err := weightOverride(body.Weights)
	if err != nil {
		s.fail(w, r, "put scorecard", err)
		return
	}

	rec, err := s.deps.SubmitScorecard(r.Context(), service.SubmitRequest{
		AgentID: chi.URLParam(r, "agentID"),
		Period:  p,
		Metrics: body.metrics(),
		Weights: weights,
		Notes:   body.Notes,
		Actor:   ActorFrom(r.Context()).ID,
	})
	if err != nil {
		s.fail(w, r, "put scorecard", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetMetrics returns the recent series and trend of one agent.
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, s.maxSeriesLimit)
	if err != nil {
		s.fail(w, r, "agent metrics", err)
		return
	}
	m, err := s.deps.AgentMetrics(r.Context(), chi.URLParam(r, "agentID"), limit)
	if err != nil {
		s.fail(w, r, "agent metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// weightOverride lays a partial weights object over the 1.0 defaults. A
// missing object means no override.
func weightOverride(in map[string]float64) (*model.WeightSet, error) {
	if in == nil {
		return nil, nil
	}
	ws, err := model.WeightsFromMap(in)
	if err != nil {
		return nil, badRequest("weights", err)
	}
	return &ws, nil
}

// decodeBody decodes a JSON body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body", err)
	}
	return nil
}
