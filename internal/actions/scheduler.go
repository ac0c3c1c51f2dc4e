package actions

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionScheduler — триггер по cron-выражению.
	ActionScheduler = "scheduler"

	paramCron        = "cron"
	paramTimezone    = "timezone"
	paramDescription = "description"
)

// cronParser — парсер cron-выражений (5 полей, как в crontab).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler — узел-триггер workflow.
//
// Сам run уже запущен, поэтому действие только проверяет выражение и
// сообщает, когда сработает следующий запуск.
//
// Data:
//
//	{
//	    "cron": "0 8 * * *",
//	    "description": "Every morning at 8am",
//	    "triggered_at": "2025-01-01T07:59:58Z",
//	    "next_run_at": "2025-01-01T08:00:00Z"
//	}
type Scheduler struct {
	now func() time.Time
}

// NewScheduler создаёт новый Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Name возвращает имя действия.
func (s *Scheduler) Name() string {
	return ActionScheduler
}

// Contract возвращает контракт параметров.
func (s *Scheduler) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionScheduler,
		Description: "Time-based trigger",
		Params: []domain.ParamSpec{
			{Name: paramCron, Type: domain.ParamString, Required: true},
			{Name: paramTimezone, Type: domain.ParamString, Description: "IANA timezone, UTC by default"},
			{Name: paramDescription, Type: domain.ParamString},
		},
	}
}

// Execute вычисляет следующее время срабатывания.
func (s *Scheduler) Execute(ctx context.Context, req *Request) (*Result, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	expr := GetParamString(req.Params, paramCron)
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return Failure("invalid cron expression %q: %v", expr, err), nil
	}

	loc := time.UTC
	if tz := GetParamString(req.Params, paramTimezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return Failure("invalid timezone %q: %v", tz, err), nil
		}
	}

	now := s.now().In(loc)
	next := schedule.Next(now)

	return Success(map[string]any{
		"cron":         expr,
		"description":  GetParamString(req.Params, paramDescription),
		"triggered_at": now.UTC().Format(time.RFC3339),
		"next_run_at":  next.UTC().Format(time.RFC3339),
	}), nil
}
