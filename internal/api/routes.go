package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Workflows
	mux.Handle("GET /api/v1/actions", chain(http.HandlerFunc(h.ListActions)))
	mux.Handle("POST /api/v1/validate", chain(http.HandlerFunc(h.ValidateGraph)))
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.CreateRun)))

	// Reports
	mux.Handle("GET /api/v1/reports", chain(http.HandlerFunc(h.ListReports)))
	mux.Handle("GET /api/v1/reports/{id}", chain(http.HandlerFunc(h.GetReport)))
	mux.Handle("GET /api/v1/submissions/{id}/report", chain(http.HandlerFunc(h.GetSubmissionReport)))
}
