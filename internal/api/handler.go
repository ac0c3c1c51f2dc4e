package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
	"github.com/shaiso/agen8/internal/repo"
)

// Workflows — валидация и выполнение графов. Реализуется *executor.Executor.
type Workflows interface {
	Validate(graph *domain.WorkflowGraph) *engine.ValidationOutcome
	Run(ctx context.Context, graph *domain.WorkflowGraph) *domain.WorkflowReport
}

// Catalog — каталог действий. Реализуется *actions.Registry.
type Catalog interface {
	Contracts() []domain.ActionContract
}

// ReportReader — чтение архива. Реализуется *repo.ReportRepo.
type ReportReader interface {
	GetByID(ctx context.Context, runID uuid.UUID) (*domain.WorkflowReport, error)
	GetBySubmission(ctx context.Context, submissionID uuid.UUID) (*domain.WorkflowReport, error)
	ListRecent(ctx context.Context, filter repo.ReportFilter) ([]repo.ReportSummary, error)
}

// Submitter ставит граф в очередь. Реализуется *mq.Publisher.
type Submitter interface {
	PublishWorkflowSubmitted(ctx context.Context, graph json.RawMessage) (uuid.UUID, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	workflows Workflows
	catalog   Catalog
	reports   ReportReader
	submitter Submitter
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
// Reports и Submitter опциональны: без них соответствующие маршруты
// отвечают 503.
type Config struct {
	Workflows Workflows
	Catalog   Catalog
	Reports   ReportReader
	Submitter Submitter
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		workflows: cfg.Workflows,
		catalog:   cfg.Catalog,
		reports:   cfg.Reports,
		submitter: cfg.Submitter,
		logger:    logger,
	}
}
