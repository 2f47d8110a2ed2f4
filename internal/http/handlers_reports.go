package http

import (
	"bytes"
	"net/http"

	"spese-api/internal/core"
	"spese-api/internal/export"
	"spese-api/internal/log"
)

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.reports.Monthly(r.Context(), currentUser(r).ID, params.Year, params.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.reports.Yearly(r.Context(), currentUser(r).ID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.Summary(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "csv", export.ContentTypeCSV, func(buf *bytes.Buffer, records []core.Expense, _ core.ExportFilter) error {
		return export.WriteCSV(buf, records)
	})
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "xlsx", export.ContentTypeXLSX, func(buf *bytes.Buffer, records []core.Expense, f core.ExportFilter) error {
		return export.WriteXLSX(buf, records, f)
	})
}

// serveExport renders into memory first so a rendering failure can still
// be reported as a JSON error instead of a truncated download.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, ext, contentType string,
	render func(*bytes.Buffer, []core.Expense, core.ExportFilter) error) {
	filter, err := ParseExportFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := currentUser(r)
	records, err := s.reports.ExportRecords(r.Context(), user.ID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, records, filter); err != nil {
		writeError(w, r, err)
		return
	}

	filename := export.Filename(user.Username, s.now(), ext)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Export generated",
		log.FieldOperation, log.OpExport,
		"format", ext,
		"records", len(records),
		"bytes", buf.Len())

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
