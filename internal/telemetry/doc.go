// Package telemetry — логирование и метрики agen8.
//
// Логи пишутся через slog. SetupLogger читает LOG_LEVEL и LOG_FORMAT;
// CLI собирает логгер через NewLogger и кладёт его в контекст
// (WithLogger), откуда его берут executor и runner.
//
// Атрибуты логов run: run_id, workflow (WithRunID, WithWorkflow),
// для узлов дополнительно node_id (WithNodeID).
//
// Metrics считает run по итоговому статусу, результаты узлов по action
// и статусу, длительность узлов и run, число выполняющихся узлов.
// nil *Metrics допустим: executor без метрик ничего не публикует.
// Runner отдаёт метрики на /metrics.
package telemetry
