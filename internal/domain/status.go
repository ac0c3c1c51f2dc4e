package domain

// NodeStatus — итоговый статус узла в run.
//
// Жизненный цикл:
//
//	(pending) → SUCCESS
//	          ↘ FAILED
//	          ↘ SKIPPED (упала зависимость, critical halt или отмена run)
type NodeStatus string

const (
	// NodeStatusSuccess — действие выполнено успешно.
	NodeStatusSuccess NodeStatus = "success"

	// NodeStatusFailed — действие завершилось ошибкой, таймаутом или некорректным результатом.
	NodeStatusFailed NodeStatus = "failed"

	// NodeStatusSkipped — узел не запускался.
	NodeStatusSkipped NodeStatus = "skipped"
)

// ReportStatus — итоговый статус run.
type ReportStatus string

const (
	// ReportStatusSuccess — все узлы выполнены успешно.
	ReportStatusSuccess ReportStatus = "success"

	// ReportStatusPartial — упали или пропущены только некритичные узлы.
	ReportStatusPartial ReportStatus = "partial"

	// ReportStatusFailed — упал критичный узел, граф невалиден или run отменён.
	ReportStatusFailed ReportStatus = "failed"
)

// String возвращает строковое представление ReportStatus.
func (s ReportStatus) String() string {
	return string(s)
}

// ParseReportStatus парсит строку в ReportStatus.
func ParseReportStatus(s string) ReportStatus {
	switch s {
	case "success":
		return ReportStatusSuccess
	case "partial":
		return ReportStatusPartial
	default:
		return ReportStatusFailed
	}
}

// ActionStatus — статус, который возвращает действие.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailure ActionStatus = "failure"
)
