package cli

import "errors"

// Ошибки команд. main переводит их в ненулевой код выхода.
var (
	// ErrGraphInvalid — граф не прошёл валидацию.
	ErrGraphInvalid = errors.New("workflow graph is invalid")

	// ErrRunFailed — run завершился со статусом failed.
	ErrRunFailed = errors.New("workflow run failed")
)
