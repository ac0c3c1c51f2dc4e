package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shaiso/agen8/internal/engine"
)

// maxGraphBytes — ограничение размера тела запроса с графом.
const maxGraphBytes = 1 << 20

// ValidationResponse — результат валидации.
type ValidationResponse struct {
	Valid  bool                      `json:"valid"`
	Errors []*engine.ValidationError `json:"errors"`
}

// SubmissionResponse — граф поставлен в очередь.
type SubmissionResponse struct {
	SubmissionID string `json:"submission_id"`
	Workflow     string `json:"workflow,omitempty"`
}

// ListActions возвращает каталог действий.
// GET /api/v1/actions
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	contracts := h.catalog.Contracts()
	List(w, contracts, len(contracts))
}

// ValidateGraph проверяет граф без выполнения.
// POST /api/v1/validate
//
// Невалидный граф — это ответ 200 с valid=false: запрос выполнен успешно.
func (h *Handler) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readGraph(w, r)
	if !ok {
		return
	}

	graph, err := engine.ParseGraph(body)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	outcome := h.workflows.Validate(graph)
	Success(w, validationResponse(outcome))
}

// CreateRun выполняет граф.
// POST /api/v1/runs           — синхронно, ответ содержит WorkflowReport
// POST /api/v1/runs?async=true — граф уходит в очередь runner, ответ 202
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readGraph(w, r)
	if !ok {
		return
	}

	graph, err := engine.ParseGraph(body)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	outcome := h.workflows.Validate(graph)
	if !outcome.Valid {
		h.logger.Debug("workflow graph rejected", "workflow", graph.Name, "error", outcome.Err())
		InvalidGraph(w, "workflow graph is invalid", validationResponse(outcome).Errors)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if h.submitter == nil {
			Unavailable(w, "queue is not configured")
			return
		}

		id, err := h.submitter.PublishWorkflowSubmitted(r.Context(), json.RawMessage(body))
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}

		Accepted(w, SubmissionResponse{SubmissionID: id.String(), Workflow: graph.Name})
		return
	}

	report := h.workflows.Run(r.Context(), graph)
	Success(w, report)
}

// readGraph читает тело запроса с ограничением размера.
func (h *Handler) readGraph(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGraphBytes))
	if err != nil {
		BadRequest(w, "failed to read request body: "+err.Error())
		return nil, false
	}
	if len(body) == 0 {
		BadRequest(w, "request body is empty")
		return nil, false
	}
	return body, true
}

func validationResponse(outcome *engine.ValidationOutcome) ValidationResponse {
	errs := outcome.Errors
	if errs == nil {
		errs = []*engine.ValidationError{}
	}
	return ValidationResponse{Valid: outcome.Valid, Errors: errs}
}
