package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/repo"
)

// ListReports возвращает последние отчёты.
// GET /api/v1/reports?workflow=...&status=...&limit=...&offset=...
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		Unavailable(w, "report archive is not configured")
		return
	}

	query := r.URL.Query()
	filter := repo.ReportFilter{
		Workflow: query.Get("workflow"),
		Limit:    parseInt(query.Get("limit"), 50),
		Offset:   parseInt(query.Get("offset"), 0),
	}

	if status := query.Get("status"); status != "" {
		filter.Status = domain.ParseReportStatus(status)
		if string(filter.Status) != status {
			BadRequest(w, "invalid status")
			return
		}
	}

	summaries, err := h.reports.ListRecent(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if summaries == nil {
		summaries = []repo.ReportSummary{}
	}

	List(w, summaries, len(summaries))
}

// GetReport возвращает отчёт по run_id.
// GET /api/v1/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		Unavailable(w, "report archive is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	report, err := h.reports.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "report not found") {
		return
	}

	Success(w, report)
}

// GetSubmissionReport возвращает отчёт по submission_id.
// GET /api/v1/submissions/{id}/report
//
// 404 означает, что runner ещё не обработал отправку.
func (h *Handler) GetSubmissionReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		Unavailable(w, "report archive is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid submission id")
		return
	}

	report, err := h.reports.GetBySubmission(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "report not found") {
		return
	}

	Success(w, report)
}

// parseInt парсит неотрицательное число или возвращает fallback.
func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
