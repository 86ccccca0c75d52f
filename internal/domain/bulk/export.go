package bulk

import (
	"strconv"

	"github.com/okian/scorecard/internal/domain/model"
)

// Export renders records in the import layout, followed by the derived
// totals and the weights they were computed with, so that re-importing the
// table reproduces the same totals.
func Export(records []model.ScorecardRecord, agents map[string]model.Agent) Table {
	t := Table{Header: ExportHeader(), Rows: make([][]string, 0, len(records))}
	for _, r := range records {
		row := make([]string, 0, len(t.Header))
		row = append(row, identifierFor(r.AgentID, agents), strconv.Itoa(r.Month), strconv.Itoa(r.Year))
		for _, m := range model.Metrics {
			row = append(row, strconv.Itoa(r.Get(m)))
		}
		row = append(row, escapeText(r.Notes), formatFloat(r.TotalScore), formatFloat(r.Percentage))
		for _, m := range model.Metrics {
			row = append(row, strconv.FormatFloat(r.Weights.Get(m), 'f', -1, 64))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// identifierFor prefers the email, then the employee id, then the raw id.
func identifierFor(agentID string, agents map[string]model.Agent) string {
	a, ok := agents[agentID]
	switch {
	case ok && a.Email != "":
		return a.Email
	case ok && a.EmployeeID != "":
		return a.EmployeeID
	default:
		return agentID
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
