package actions

import (
	"context"
	"strings"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionAIProcessor — обработка текста по инструкции.
	ActionAIProcessor = "ai_processor"

	paramInstruction = "instruction"
	paramInputText   = "input_text"
	paramMaxItems    = "max_items"

	defaultMaxItems = 5
	maxItemLength   = 200
)

// AIProcessor — детерминированная обработка текста по инструкции.
//
// Внешняя модель не вызывается: действие собирает текст из inputs
// (или input_text) и строит маркированный список из первых max_items
// фрагментов под заголовком-инструкцией.
//
// Data:
//
//	{
//	    "instruction": "Summarize the headlines",
//	    "summary": "Summarize the headlines\n- ...\n- ...",
//	    "items": 2
//	}
type AIProcessor struct{}

// NewAIProcessor создаёт новый AIProcessor.
func NewAIProcessor() *AIProcessor {
	return &AIProcessor{}
}

// Name возвращает имя действия.
func (p *AIProcessor) Name() string {
	return ActionAIProcessor
}

// Contract возвращает контракт параметров.
func (p *AIProcessor) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionAIProcessor,
		Description: "Summarize, extract, or transform text",
		Params: []domain.ParamSpec{
			{Name: paramInstruction, Type: domain.ParamString, Required: true},
			{Name: paramInputText, Type: domain.ParamString, Description: "text to process instead of inputs"},
			{Name: paramMaxItems, Type: domain.ParamNumber},
		},
	}
}

// Execute обрабатывает текст.
func (p *AIProcessor) Execute(ctx context.Context, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx)
	default:
	}

	instruction := strings.TrimSpace(GetParamString(req.Params, paramInstruction))
	if instruction == "" {
		return Failure("ai_processor: instruction is empty"), nil
	}

	var fragments []string
	if text := GetParamString(req.Params, paramInputText); text != "" {
		fragments = collectText(text, fragments)
	} else {
		for _, input := range req.OrderedInputs() {
			fragments = collectText(input, fragments)
		}
	}

	limit := GetParamInt(req.Params, paramMaxItems)
	if limit <= 0 {
		limit = defaultMaxItems
	}
	if len(fragments) > limit {
		fragments = fragments[:limit]
	}

	var b strings.Builder
	b.WriteString(instruction)
	for _, fragment := range fragments {
		b.WriteString("\n- ")
		b.WriteString(truncate(fragment, maxItemLength))
	}

	return Success(map[string]any{
		"instruction": instruction,
		"summary":     b.String(),
		"items":       len(fragments),
	}), nil
}

// collectText раскладывает значение на текстовые фрагменты.
func collectText(v any, acc []string) []string {
	switch val := v.(type) {
	case nil:
		return acc
	case string:
		for _, line := range strings.Split(val, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				acc = append(acc, line)
			}
		}
		return acc
	case map[string]any:
		for _, name := range []string{"summary", "lines", "items", "body", "text"} {
			if inner, ok := val[name]; ok {
				return collectText(inner, acc)
			}
		}
		return append(acc, itemText(val))
	default:
		if items, ok := toItems(val); ok {
			for _, item := range items {
				acc = collectText(item, acc)
			}
			return acc
		}
		return append(acc, itemText(val))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
