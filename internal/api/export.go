package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/climate-core/internal/history"
)

// exportDateLayout is the query parameter format for export bounds.
const exportDateLayout = "2006-01-02"

// exportFilename is the attachment name offered to browsers.
const exportFilename = "temperature_log.csv"

// handleExport streams logged samples between start_date and end_date
// (inclusive days, UTC) as CSV. unit_id narrows the export to one unit.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, ok := parseExportQuery(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename)
	if err := s.history.WriteCSV(r.Context(), q, w); err != nil {
		// Headers are already sent; the truncated body is all we can do.
		s.logger.Error("csv export failed", "error", err, "request_id", r.Context().Value(ctxKeyRequestID))
	}
}

func parseExportQuery(w http.ResponseWriter, r *http.Request) (history.Query, bool) {
	var q history.Query
	params := r.URL.Query()

	start, err := time.Parse(exportDateLayout, params.Get("start_date"))
	if err != nil {
		writeBadRequest(w, "start_date must be YYYY-MM-DD")
		return q, false
	}
	end, err := time.Parse(exportDateLayout, params.Get("end_date"))
	if err != nil {
		writeBadRequest(w, "end_date must be YYYY-MM-DD")
		return q, false
	}
	if end.Before(start) {
		writeBadRequest(w, history.ErrInvalidRange.Error())
		return q, false
	}
	q.Start, q.End = start, end

	if raw := params.Get("unit_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid unit_id")
			return q, false
		}
		q.UnitID = &id
	}
	return q, true
}
