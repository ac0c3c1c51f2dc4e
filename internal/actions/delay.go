package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionDelay — пауза.
	ActionDelay = "delay"

	paramDurationSec = "duration_sec"
	paramDurationMs  = "duration_ms"
)

// Delay — пауза между узлами.
//
// Параметры:
//
//	{"duration_sec": 10}   // или
//	{"duration_ms": 5000}
//
// Data: {"duration_ms": 5000}
type Delay struct{}

// NewDelay создаёт новый Delay.
func NewDelay() *Delay {
	return &Delay{}
}

// Name возвращает имя действия.
func (d *Delay) Name() string {
	return ActionDelay
}

// Contract возвращает контракт параметров.
func (d *Delay) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionDelay,
		Description: "Pause between nodes",
		Params: []domain.ParamSpec{
			{Name: paramDurationSec, Type: domain.ParamNumber},
			{Name: paramDurationMs, Type: domain.ParamNumber},
		},
	}
}

// Execute выполняет задержку.
// Поддерживает отмену через ctx.
func (d *Delay) Execute(ctx context.Context, req *Request) (*Result, error) {
	duration, err := parseDuration(req.Params)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, cancelled(ctx)
	case <-timer.C:
		return Success(map[string]any{
			"duration_ms": duration.Milliseconds(),
		}), nil
	}
}

// parseDuration извлекает длительность из params.
func parseDuration(params map[string]any) (time.Duration, error) {
	if sec := GetParamInt(params, paramDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}

	if ms := GetParamInt(params, paramDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidParams, ActionDelay)
}
