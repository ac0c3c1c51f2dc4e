// Package cli реализует инструмент командной строки agen8.
//
// # Обзор
//
// CLI работает с графами локально (validate, run, actions) и с
// инфраструктурой runner (submit через RabbitMQ, reports через PostgreSQL).
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: agen8 run flow.json --json | jq .status
//
// ## Commands
//
//   - validate FILE — Graph Validator без выполнения
//   - run FILE      — валидация и выполнение графа в процессе
//   - actions       — каталог действий и их параметров
//   - submit FILE   — отправка графа в очередь workflows.submitted
//   - reports       — list, show по архиву отчётов
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей замыкания для ленивого создания Registry и Output
// после парсинга PersistentFlags. FILE может быть "-" (stdin).
package cli
