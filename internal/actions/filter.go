package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionDataFilter — фильтрация и срезы списков.
	ActionDataFilter = "data_filter"

	paramSource    = "source"
	paramItems     = "items"
	paramField     = "field"
	paramCondition = "condition"
	paramContains  = "contains"
	paramOperation = "operation"
	paramKey       = "key"
	paramLimit     = "limit"
	paramCount     = "count"
)

// Операции data_filter.
const (
	OpHead   = "head"
	OpTail   = "tail"
	OpUnique = "unique"
	OpSort   = "sort"
)

// DataFilter — фильтрация, дедупликация и срезы списков из inputs.
//
// Источник: params.items, иначе data зависимости source (по умолчанию первой).
// field — gjson-путь до списка внутри data ("lines", "body.items").
// Если field не задан и data — объект, берётся "items" или "lines".
//
// Порядок применения: condition → contains → operation → limit.
// condition — expr-выражение над item и index, например "item.score > 3".
//
// Если источник не список, он возвращается без изменений.
type DataFilter struct{}

// NewDataFilter создаёт новый DataFilter.
func NewDataFilter() *DataFilter {
	return &DataFilter{}
}

// Name возвращает имя действия.
func (f *DataFilter) Name() string {
	return ActionDataFilter
}

// Contract возвращает контракт параметров.
func (f *DataFilter) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionDataFilter,
		Description: "Filter, sort, deduplicate or slice lists",
		Params: []domain.ParamSpec{
			{Name: paramSource, Type: domain.ParamString, Description: "dependency id, first dependency by default"},
			{Name: paramItems, Type: domain.ParamArray, Description: "literal list instead of inputs"},
			{Name: paramField, Type: domain.ParamString, Description: "path to the list inside input data"},
			{Name: paramCondition, Type: domain.ParamString, Description: "expression over item and index"},
			{Name: paramContains, Type: domain.ParamString},
			{Name: paramOperation, Type: domain.ParamString, Description: "head, tail, unique or sort"},
			{Name: paramKey, Type: domain.ParamString, Description: "path inside item for unique and sort"},
			{Name: paramLimit, Type: domain.ParamNumber},
			{Name: paramCount, Type: domain.ParamNumber, Description: "alias for limit"},
		},
	}
}

// Execute фильтрует список.
func (f *DataFilter) Execute(ctx context.Context, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx)
	default:
	}

	source, ok := req.Params[paramItems]
	if !ok {
		source, ok = req.Input(GetParamString(req.Params, paramSource))
		if !ok {
			return Failure("data_filter: no input to filter"), nil
		}
	}

	source, err := selectField(source, GetParamString(req.Params, paramField))
	if err != nil {
		return nil, err
	}

	items, isList := toItems(source)
	if !isList {
		return Success(source), nil
	}

	if cond := GetParamString(req.Params, paramCondition); cond != "" {
		items, err = filterByCondition(items, cond)
		if err != nil {
			return Failure("data_filter: %v", err), nil
		}
	}

	if needle := GetParamString(req.Params, paramContains); needle != "" {
		items = filterContains(items, needle)
	}

	key := GetParamString(req.Params, paramKey)
	limit := GetParamInt(req.Params, paramLimit)
	if limit == 0 {
		limit = GetParamInt(req.Params, paramCount)
	}

	switch op := GetParamString(req.Params, paramOperation); op {
	case "", OpHead:
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
	case OpTail:
		if limit > 0 && len(items) > limit {
			items = items[len(items)-limit:]
		}
	case OpUnique:
		items = uniqueItems(items, key)
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
	case OpSort:
		sortItems(items, key)
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidParams, op)
	}

	return Success(items), nil
}

// selectField извлекает список из data по gjson-пути.
func selectField(data any, field string) (any, error) {
	if field == "" {
		if m, ok := data.(map[string]any); ok {
			for _, name := range []string{"items", "lines"} {
				if v, exists := m[name]; exists {
					return v, nil
				}
			}
		}
		return data, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("data_filter: encode input: %w", err)
	}

	res := gjson.GetBytes(raw, field)
	if !res.Exists() {
		return nil, fmt.Errorf("%w: field %q not found in input", ErrInvalidParams, field)
	}
	return res.Value(), nil
}

// filterByCondition оставляет элементы, для которых условие истинно.
func filterByCondition(items []any, cond string) ([]any, error) {
	program, err := expr.Compile(cond)
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}

	result := make([]any, 0, len(items))
	for i, item := range items {
		ok, err := evalCondition(program, item, i)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, item)
		}
	}
	return result, nil
}

func evalCondition(program *vm.Program, item any, index int) (bool, error) {
	out, err := expr.Run(program, map[string]any{"item": item, "index": index})
	if err != nil {
		return false, fmt.Errorf("condition at item %d: %w", index, err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to bool (got %T)", out)
	}
	return b, nil
}

func filterContains(items []any, needle string) []any {
	needle = strings.ToLower(needle)
	result := make([]any, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(itemText(item)), needle) {
			result = append(result, item)
		}
	}
	return result
}

// uniqueItems удаляет дубликаты, сохраняя первое вхождение.
func uniqueItems(items []any, key string) []any {
	seen := make(map[string]bool, len(items))
	result := make([]any, 0, len(items))
	for _, item := range items {
		k := itemKey(item, key)
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, item)
	}
	return result
}

// sortItems сортирует по ключу: числа — численно, остальное — как строки.
func sortItems(items []any, key string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := itemSortValue(items[i], key), itemSortValue(items[j], key)
		if a.Type == gjson.Number && b.Type == gjson.Number {
			return a.Num < b.Num
		}
		return a.String() < b.String()
	})
}

func itemSortValue(item any, key string) gjson.Result {
	raw, err := json.Marshal(item)
	if err != nil {
		return gjson.Result{Type: gjson.String, Str: fmt.Sprint(item)}
	}
	if key == "" {
		return gjson.ParseBytes(raw)
	}
	return gjson.GetBytes(raw, key)
}

func itemKey(item any, key string) string {
	if key == "" {
		return itemText(item)
	}
	return itemSortValue(item, key).String()
}

func itemText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err == nil {
			return string(raw)
		}
	}
	return fmt.Sprint(item)
}
