package actions

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shaiso/agen8/internal/domain"
)

// Registry — реестр действий (Action Registry).
//
// Заполняется один раз при старте процесса; во время run только читается
// и может использоваться конкурентно всеми узлами. Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// Options — настройки встроенных действий.
type Options struct {
	// RatePerHost — лимит исходящих HTTP запросов в секунду на хост (0 — без лимита).
	RatePerHost float64

	// Burst — размер burst для лимита.
	Burst int

	// Deliverer — транспорт уведомлений (email, slack, github).
	// По умолчанию — LogDeliverer.
	Deliverer Deliverer

	// Logger — логгер действий.
	Logger *slog.Logger
}

// DefaultRegistry создаёт реестр со всеми встроенными действиями.
func DefaultRegistry() *Registry {
	return BuiltinRegistry(Options{})
}

// BuiltinRegistry создаёт реестр встроенных действий с настройками.
func BuiltinRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Deliverer == nil {
		opts.Deliverer = NewLogDeliverer(opts.Logger)
	}

	limiter := NewHostLimiter(opts.RatePerHost, opts.Burst)

	r := NewRegistry()
	r.Register(NewAPICaller(limiter))
	r.Register(NewWebScraper(limiter))
	r.Register(NewDataFilter())
	r.Register(NewAIProcessor())
	r.Register(NewEmailSender(opts.Deliverer))
	r.Register(NewSlackSender(opts.Deliverer))
	r.Register(NewGitHubAction(opts.Deliverer))
	r.Register(NewScheduler())
	r.Register(NewDelay())
	r.Register(NewTransform())

	return r
}

// Register регистрирует действие в реестре.
// Если действие с таким именем уже существует, оно будет перезаписано.
func (r *Registry) Register(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action.Name()] = action
}

// Get возвращает действие по имени.
// Возвращает ErrActionNotFound, если действие не найдено.
func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, exists := r.actions[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}

	return action, nil
}

// Contract возвращает контракт действия.
// Реализует engine.Catalog.
func (r *Registry) Contract(name string) (domain.ActionContract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, exists := r.actions[name]
	if !exists {
		return domain.ActionContract{}, false
	}
	return action.Contract(), true
}

// Names возвращает отсортированный список имён действий.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contracts возвращает контракты всех действий, отсортированные по имени.
func (r *Registry) Contracts() []domain.ActionContract {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	contracts := make([]domain.ActionContract, 0, len(names))
	for _, name := range names {
		if action, ok := r.actions[name]; ok {
			contracts = append(contracts, action.Contract())
		}
	}
	return contracts
}

// Count возвращает количество зарегистрированных действий.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}
