package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/agen8/internal/domain"
	"github.com/shaiso/agen8/internal/engine"
)

const (
	// ActionTransform — преобразование данных через Go templates.
	ActionTransform = "transform"

	paramMappings = "mappings"
)

// Transform — преобразование inputs через Go templates.
//
// Параметры:
//
//	{
//	    "mappings": {
//	        "total": "{{ len .Inputs.filter }}",
//	        "first": "{{ index .Inputs.filter 0 }}"
//	    }
//	}
//
// Data: результаты рендеринга mappings, JSON-значения разбираются.
//
//	{"total": 3, "first": "..."}
type Transform struct{}

// NewTransform создаёт новый Transform.
func NewTransform() *Transform {
	return &Transform{}
}

// Name возвращает имя действия.
func (t *Transform) Name() string {
	return ActionTransform
}

// Contract возвращает контракт параметров.
func (t *Transform) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionTransform,
		Description: "Reshape inputs with Go templates",
		Params: []domain.ParamSpec{
			{Name: paramMappings, Type: domain.ParamObject, Required: true},
		},
	}
}

// Execute выполняет трансформацию.
func (t *Transform) Execute(ctx context.Context, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx)
	default:
	}

	// Executor уже отрендерил params; повторный Render не меняет готовые строки
	mappings := GetParamMapString(req.Params, paramMappings)
	if len(mappings) == 0 {
		return Success(map[string]any{}), nil
	}

	tmplCtx := engine.NewContext(req.NodeID, req.Inputs)
	tmplCtx.Workflow = req.Workflow

	data := make(map[string]any, len(mappings))
	for key, tmpl := range mappings {
		rendered, err := engine.Render(tmpl, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", key, err)
		}
		data[key] = parseValue(rendered)
	}

	return Success(data), nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	return value
}
