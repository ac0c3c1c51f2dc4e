// Package executor содержит Workflow Executor.
//
// Включает:
//   - executor.go — запуск узлов волнами, таймауты, паники, отмена
//   - state.go    — состояние run: результаты, trace, остановка, итоговый статус
//   - retry.go    — политика повторов и backoff
//   - errors.go   — ошибки узлов и ошибки уровня run
//
// Executor получает провалидированный граф и всегда возвращает
// WorkflowReport: ошибки действий попадают в результаты узлов и
// никогда не возвращаются вызывающей стороне.
package executor
