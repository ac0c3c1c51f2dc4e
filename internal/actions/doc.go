// Package actions содержит Action Registry и встроенные действия workflow.
//
// # Интерфейс Action
//
//	type Action interface {
//	    Name() string
//	    Contract() domain.ActionContract
//	    Execute(ctx context.Context, req *Request) (*Result, error)
//	}
//
// Request содержит отрендеренные params узла и inputs — data зависимостей
// (depID → data). Result повторяет форму {status, data, error}: действие
// может вернуть Failure(...) или ошибку, Executor трактует оба случая
// как failed.
//
// Contract — статический список параметров с типами. Registry реализует
// engine.Catalog, поэтому валидатор проверяет обязательные параметры
// до запуска run.
//
// # Registry
//
//	registry := actions.DefaultRegistry()
//	action, err := registry.Get("web_scraper")
//
// Registry заполняется при старте процесса и во время run только читается.
//
// # Встроенные действия
//
//   - api_caller    — HTTP запрос (api_caller.go)
//   - web_scraper   — текст и ссылки страницы (scraper.go)
//   - data_filter   — condition/contains/head/tail/unique/sort над списком (filter.go)
//   - ai_processor  — сводка по инструкции без внешней модели (ai_processor.go)
//   - email_sender, slack_sender, github_action — уведомления через Deliverer (notify.go)
//   - scheduler     — cron-триггер (scheduler.go)
//   - delay         — пауза (delay.go)
//   - transform     — Go templates над inputs (transform.go)
//
// Исходящие HTTP запросы ограничиваются HostLimiter (limiter.go).
package actions
