package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	service "github.com/okian/scorecard/internal/app"
)

// handleGetExport streams records in the import layout as a download.
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	from, err := queryOptionalPeriod(r, "from")
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	to, err := queryOptionalPeriod(r, "to")
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = spreadsheet.FormatCSV
	}

	file, err := s.deps.Export(r.Context(), service.ExportRequest{
		Format:   format,
		From:     from,
		To:       to,
		AgentIDs: queryList(r, "agent"),
	})
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.Header().Set("X-Record-Count", strconv.Itoa(file.Records))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}
