package executor

import "errors"

// Ошибки выполнения узлов (ExecutionError).
var (
	// ErrNodeTimeout — действие не уложилось в таймаут узла.
	ErrNodeTimeout = errors.New("node timed out")

	// ErrMalformedResult — действие вернуло результат неверной формы.
	ErrMalformedResult = errors.New("malformed action result")

	// ErrActionFailed — действие сообщило об ошибке.
	ErrActionFailed = errors.New("action failed")

	// ErrActionPanic — действие запаниковало.
	ErrActionPanic = errors.New("action panicked")

	// ErrNodeAbandoned — узел брошен при отмене run.
	ErrNodeAbandoned = errors.New("node abandoned")
)

// Ошибки уровня run.
var (
	// ErrStructuralGuard — граф не прошёл защитную проверку перед выполнением.
	ErrStructuralGuard = errors.New("structural guard failed")

	// ErrInvalidGraph — граф не прошёл валидацию.
	ErrInvalidGraph = errors.New("invalid workflow graph")

	// ErrRunCancelled — run отменён вызывающей стороной.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunHalted — run остановлен падением критичного узла.
	ErrRunHalted = errors.New("run halted")
)
