// Package api содержит HTTP API runner.
//
// Структура:
//   - handler.go          — Handler с DI (executor, архив, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - workflow_handler.go — /actions, /validate, /runs
//   - report_handler.go   — /reports
//
// API позволяет проверить и выполнить граф синхронно или поставить его
// в очередь runner, а также читать архив отчётов.
package api
