package domain

// WorkflowGraph — описание workflow, которое исполняет Executor.
//
// Граф строится вызывающей стороной (или внешним планировщиком) один раз
// на run и после передачи в Executor не изменяется.
type WorkflowGraph struct {
	// Name — отображаемое имя workflow (например, "Daily TechCrunch Summary").
	Name string `json:"workflow_name,omitempty"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// Nodes — узлы графа в порядке объявления.
	// Порядок объявления используется для детерминированного tie-break.
	Nodes []Node `json:"nodes"`
}

// Node — один шаг workflow.
type Node struct {
	// ID — уникальный идентификатор узла в рамках графа.
	ID string `json:"id"`

	// ActionType — имя действия в Action Registry.
	ActionType string `json:"action_type"`

	// Params — параметры действия, передаются как есть
	// (после рендеринга шаблонов {{ .Inputs.x }}).
	Params map[string]any `json:"params,omitempty"`

	// DependsOn — узлы, чьи outputs этот узел получает в inputs.
	DependsOn []string `json:"depends_on,omitempty"`

	// Critical — падение узла останавливает весь run.
	Critical bool `json:"critical,omitempty"`

	// TolerateFailed — зависимости, падение которых не приводит к skip
	// этого узла. Такие зависимости не попадают в inputs.
	TolerateFailed []string `json:"tolerate_failed,omitempty"`

	// TimeoutSec — таймаут узла. Переопределяет таймаут по умолчанию.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Retry — политика повторных попыток для узла.
	Retry *RetryPolicy `json:"retry,omitempty"`
}

// Tolerates проверяет, разрешено ли узлу работать при падении зависимости depID.
func (n *Node) Tolerates(depID string) bool {
	for _, id := range n.TolerateFailed {
		if id == depID {
			return true
		}
	}
	return false
}

// NodeByID возвращает узел по ID или nil.
func (g *WorkflowGraph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty"`
}

// Attempts возвращает количество попыток с учётом nil и нулевых значений.
func (p *RetryPolicy) Attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}
