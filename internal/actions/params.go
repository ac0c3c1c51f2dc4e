package actions

import "fmt"

// GetParamString извлекает строковое значение из params.
func GetParamString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetParamInt извлекает числовое значение из params.
func GetParamInt(params map[string]any, key string) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetParamBool извлекает булево значение из params.
func GetParamBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetParamMap извлекает map из params.
func GetParamMap(params map[string]any, key string) map[string]any {
	if v, ok := params[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetParamMapString извлекает map[string]string из params.
func GetParamMapString(params map[string]any, key string) map[string]string {
	if v, ok := params[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetParamStrings извлекает список строк: строку, []string или []any.
func GetParamStrings(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, fmt.Sprint(item))
		}
		return result
	}
	return nil
}

// toItems приводит значение к списку элементов.
// Возвращает false, если значение не является списком.
// Результат всегда новый срез: data зависимостей не изменяется.
func toItems(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return append([]any(nil), items...), true
	case []string:
		result := make([]any, len(items))
		for i, s := range items {
			result[i] = s
		}
		return result, true
	case []map[string]any:
		result := make([]any, len(items))
		for i, m := range items {
			result[i] = m
		}
		return result, true
	}
	return nil, false
}
