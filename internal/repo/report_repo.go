package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/agen8/internal/domain"
)

const defaultListLimit = 20

// ReportRepo — архив завершённых WorkflowReport.
type ReportRepo struct {
	pool *pgxpool.Pool
}

// NewReportRepo создаёт новый ReportRepo.
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// ReportSummary — строка списка отчётов без тела отчёта.
type ReportSummary struct {
	RunID        uuid.UUID           `json:"run_id"`
	SubmissionID *uuid.UUID          `json:"submission_id,omitempty"`
	Workflow     string              `json:"workflow"`
	Status       domain.ReportStatus `json:"status"`
	NodeCount    int                 `json:"node_count"`
	ErrorCount   int                 `json:"error_count"`
	FinishedAt   time.Time           `json:"finished_at"`
	DurationMs   int64               `json:"duration_ms"`
}

// ReportFilter — параметры фильтрации списка.
type ReportFilter struct {
	Workflow string
	Status   domain.ReportStatus
	Limit    int
	Offset   int
}

// Save сохраняет отчёт. submissionID может быть uuid.Nil (run из CLI).
// Повторное сохранение того же run или той же отправки — ErrAlreadyExists.
func (r *ReportRepo) Save(ctx context.Context, submissionID uuid.UUID, report *domain.WorkflowReport) error {
	if report.FinishedAt.IsZero() {
		return ErrUnfinishedReport
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO workflow_reports (run_id, submission_id, workflow, status, node_count,
		                              error_count, report, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		report.RunID,
		nullUUID(submissionID),
		report.Workflow,
		string(report.Status),
		len(report.Results),
		len(report.Errors),
		body,
		report.StartedAt,
		report.FinishedAt,
		report.DurationMs,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID возвращает отчёт по run_id.
func (r *ReportRepo) GetByID(ctx context.Context, runID uuid.UUID) (*domain.WorkflowReport, error) {
	query := `SELECT report FROM workflow_reports WHERE run_id = $1`
	return scanReport(r.pool.QueryRow(ctx, query, runID))
}

// GetBySubmission возвращает отчёт по submission_id из очереди.
func (r *ReportRepo) GetBySubmission(ctx context.Context, submissionID uuid.UUID) (*domain.WorkflowReport, error) {
	query := `SELECT report FROM workflow_reports WHERE submission_id = $1`
	return scanReport(r.pool.QueryRow(ctx, query, submissionID))
}

// ExistsForSubmission проверяет, обработана ли уже отправка.
// Runner использует это для идемпотентности при повторной доставке.
func (r *ReportRepo) ExistsForSubmission(ctx context.Context, submissionID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM workflow_reports WHERE submission_id = $1)`
	if err := r.pool.QueryRow(ctx, query, submissionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return exists, nil
}

// ListRecent возвращает последние отчёты, новые первыми.
func (r *ReportRepo) ListRecent(ctx context.Context, filter ReportFilter) ([]ReportSummary, error) {
	filter = filter.normalize()

	query := `
		SELECT run_id, submission_id, workflow, status, node_count, error_count, finished_at, duration_ms
		FROM workflow_reports
		WHERE ($1::text IS NULL OR workflow = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY finished_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Workflow),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var s ReportSummary
		var status string
		if err := rows.Scan(
			&s.RunID,
			&s.SubmissionID,
			&s.Workflow,
			&status,
			&s.NodeCount,
			&s.ErrorCount,
			&s.FinishedAt,
			&s.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		s.Status = domain.ParseReportStatus(status)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// --- Helpers ---

func (f ReportFilter) normalize() ReportFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// scanReport читает JSONB отчёта.
func scanReport(row pgx.Row) (*domain.WorkflowReport, error) {
	var body []byte
	err := row.Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}

	var report domain.WorkflowReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// isUniqueViolation проверяет код 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
