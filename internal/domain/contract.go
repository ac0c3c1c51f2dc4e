package domain

// ParamType — ожидаемый тип параметра действия.
type ParamType string

const (
	ParamAny    ParamType = "any"
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
	ParamBool   ParamType = "boolean"
	ParamObject ParamType = "object"
	ParamArray  ParamType = "array"
)

// ParamSpec — описание одного параметра действия.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ActionContract — статический контракт типа действия.
//
// Контракт принадлежит Registry и используется валидатором
// для проверки обязательных параметров до запуска.
type ActionContract struct {
	// Name — имя типа действия ("email_sender", "web_scraper", ...).
	Name string `json:"name"`

	// Description — краткое описание для CLI и планировщика.
	Description string `json:"description,omitempty"`

	// Params — известные параметры действия.
	Params []ParamSpec `json:"params,omitempty"`
}

// Required возвращает обязательные параметры.
func (c ActionContract) Required() []ParamSpec {
	required := make([]ParamSpec, 0, len(c.Params))
	for _, p := range c.Params {
		if p.Required {
			required = append(required, p)
		}
	}
	return required
}

// Param возвращает описание параметра по имени.
func (c ActionContract) Param(name string) (ParamSpec, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Accepts проверяет, подходит ли значение под тип параметра.
// JSON-числа приходят как float64, поэтому number принимает все числовые типы.
func (t ParamType) Accepts(v any) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case ParamBool:
		_, ok := v.(bool)
		return ok
	case ParamObject:
		switch v.(type) {
		case map[string]any, map[string]string:
			return true
		}
		return false
	case ParamArray:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	default:
		return true
	}
}
