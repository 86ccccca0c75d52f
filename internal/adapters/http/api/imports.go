package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	"github.com/okian/scorecard/internal/domain/model"
)

const formFileField = "file"

type importAccepted struct {
	Job       model.ImportJob `json:"job"`
	Duplicate bool            `json:"duplicate"`
}

// handlePostImport accepts a CSV or XLSX upload, either as the raw body or as
// the "file" part of a multipart form. With ?async=true the import is queued
// and the job returned; otherwise the result is returned once every row has
// been applied.
func (s *Server) handlePostImport(w http.ResponseWriter, r *http.Request) {
	data, format, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	actor := ActorFrom(r.Context()).ID

	if !queryBool(r, "async") {
		res, err := s.deps.Import(r.Context(), data, format, actor)
		if err != nil {
			s.fail(w, r, "import", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	job, dup, err := s.deps.SubmitImport(r.Context(), data, format, actor)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	status := http.StatusAccepted
	if dup {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/api/v1/imports/"+job.ID)
	writeJSON(w, status, importAccepted{Job: job, Duplicate: dup})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, "import job", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// readUpload returns the uploaded bytes and the format hinted by the query,
// the part's file name or the content type. An empty format lets the service
// detect it from the content. One byte past the limit is read so the service
// can tell an oversized file from one exactly at the limit.
func (s *Server) readUpload(r *http.Request) ([]byte, string, error) {
	format := strings.TrimSpace(r.URL.Query().Get("format"))
	limit := s.maxBodyBytes + 1

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, "", badRequest("multipart", err)
		}
		f, hdr, err := r.FormFile(formFileField)
		if err != nil {
			return nil, "", badRequest("multipart", errors.Wrapf(err, "field %q", formFileField))
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, limit))
		if err != nil {
			return nil, "", badRequest("read upload", err)
		}
		if format == "" {
			format = formatFromName(hdr.Filename)
		}
		return data, format, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, "", badRequest("read body", err)
	}
	if format == "" {
		format = formatFromMediaType(mediaType)
	}
	return data, format, nil
}

func formatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case "." + spreadsheet.FormatCSV:
		return spreadsheet.FormatCSV
	case "." + spreadsheet.FormatXLSX:
		return spreadsheet.FormatXLSX
	}
	return ""
}

func formatFromMediaType(mediaType string) string {
	switch {
	case mediaType == "text/csv":
		return spreadsheet.FormatCSV
	case strings.Contains(mediaType, "spreadsheetml"):
		return spreadsheet.FormatXLSX
	}
	return ""
}
