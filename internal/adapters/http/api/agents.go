package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/scorecard/internal/domain/model"
)

type agentRequest struct {
	ID           string             `json:"id" validate:"omitempty,max=64"`
	Email        string             `json:"email" validate:"omitempty,email"`
	EmployeeID   string             `json:"employeeId" validate:"max=64"`
	Name         string             `json:"name" validate:"required,max=200"`
	Role         model.Role         `json:"role" validate:"omitempty,oneof=agent team_leader manager admin"`
	TeamLeaderID string             `json:"teamLeaderId" validate:"max=64"`
	ManagerID    string             `json:"managerId" validate:"max=64"`
	Weights      map[string]float64 `json:"weights"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.deps.Agents(r.Context())
	if err != nil {
		s.fail(w, r, "list agents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Agent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		s.fail(w, r, "get agent", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleSaveAgent creates or replaces an agent record.
func (s *Server) handleSaveAgent(w http.ResponseWriter, r *http.Request) {
	var body agentRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, "save agent", err)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(w, r, "save agent", badRequest("validate", err))
		return
	}
	weights, err := weightOverride(body.Weights)
	if err != nil {
		s.fail(w, r, "save agent", err)
		return
	}
	role := body.Role
	if role == "" {
		role = model.RoleAgent
	}
	a, err := s.deps.SaveAgent(r.Context(), model.Agent{
		ID:           strings.TrimSpace(body.ID),
		Email:        strings.ToLower(strings.TrimSpace(body.Email)),
		EmployeeID:   strings.TrimSpace(body.EmployeeID),
		Name:         strings.TrimSpace(body.Name),
		Role:         role,
		TeamLeaderID: body.TeamLeaderID,
		ManagerID:    body.ManagerID,
		Weights:      weights,
	})
	if err != nil {
		s.fail(w, r, "save agent", err)
		return
	}
	w.Header().Set("Location", "/api/v1/agents/"+a.ID)
	writeJSON(w, http.StatusOK, a)
}
