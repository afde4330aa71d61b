package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"assofin/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// uploadedFile returns the "file" part of a multipart upload bounded by the
// import size limit.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.ImportMaxBytes)
	if err := r.ParseMultipartForm(s.deps.ImportMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("file exceeds %d bytes", s.deps.ImportMaxBytes)
		}
		return nil, badRequest("invalid multipart form: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("missing file field")
	}
	return f, nil
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	f, err := s.uploadedFile(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer f.Close()

	res, err := s.deps.Imports.Preview(f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreviewView(res))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	f, err := s.uploadedFile(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer f.Close()

	res, err := s.deps.Imports.Import(r.Context(), r.FormValue("account_id"), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="modele_import.xlsx"`)
	if err := s.deps.Imports.Template(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to write import template", log.FieldError, err)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fail(w, r, badRequest("days must be a positive integer"))
			return
		}
		days = n
	}
	rep, err := s.deps.Reports.Report(r.Context(), days)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportView(rep))
}
