package actions

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionEmailSender — отправка email.
	ActionEmailSender = "email_sender"

	// ActionSlackSender — сообщение в Slack.
	ActionSlackSender = "slack_sender"

	// ActionGitHubAction — создание issue в GitHub.
	ActionGitHubAction = "github_action"

	paramTo       = "to"
	paramSubject  = "subject"
	paramCC       = "cc"
	paramChannel  = "channel"
	paramText     = "text"
	paramThreadTS = "thread_ts"
	paramOwner    = "owner"
	paramRepo     = "repo"
	paramTitle    = "title"

	previewLength = 50
)

// Message — исходящее уведомление.
type Message struct {
	ID        uuid.UUID         `json:"id"`
	Channel   string            `json:"channel"` // email, slack, github
	Target    string            `json:"target"`  // адрес, канал или owner/repo
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Deliverer — транспорт уведомлений.
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message) error
}

// LogDeliverer пишет уведомления в лог вместо реальной отправки.
type LogDeliverer struct {
	logger *slog.Logger
}

// NewLogDeliverer создаёт LogDeliverer.
func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDeliverer{logger: logger}
}

// Deliver логирует сообщение.
func (d *LogDeliverer) Deliver(_ context.Context, msg *Message) error {
	d.logger.Info("notification delivered",
		"message_id", msg.ID,
		"channel", msg.Channel,
		"target", msg.Target,
		"subject", msg.Subject,
		"preview", truncate(msg.Body, previewLength),
	)
	return nil
}

// Outbox — Deliverer, сохраняющий сообщения в памяти.
type Outbox struct {
	mu       sync.Mutex
	messages []*Message
}

// Deliver сохраняет сообщение.
func (o *Outbox) Deliver(_ context.Context, msg *Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages возвращает копию отправленных сообщений.
func (o *Outbox) Messages() []*Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Message(nil), o.messages...)
}

func newMessage(channel, target, subject, body string) *Message {
	return &Message{
		ID:        uuid.New(),
		Channel:   channel,
		Target:    target,
		Subject:   subject,
		Body:      body,
		Meta:      make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}

// deliver отправляет сообщение с учётом отмены ctx.
func deliver(ctx context.Context, d Deliverer, msg *Message) error {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	if err := d.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s message: %w", msg.Channel, err)
	}
	return nil
}

// bodyFromInputs собирает текст сообщения из inputs, если body не задан.
func bodyFromInputs(req *Request) string {
	fragments := make([]string, 0)
	for _, input := range req.OrderedInputs() {
		fragments = collectText(input, fragments)
	}
	return strings.Join(fragments, "\n")
}

// EmailSender — отправка email через Deliverer.
//
// body по умолчанию собирается из inputs (обычно вывод ai_processor).
type EmailSender struct {
	deliverer Deliverer
}

// NewEmailSender создаёт новый EmailSender.
func NewEmailSender(d Deliverer) *EmailSender {
	return &EmailSender{deliverer: d}
}

// Name возвращает имя действия.
func (s *EmailSender) Name() string {
	return ActionEmailSender
}

// Contract возвращает контракт параметров.
func (s *EmailSender) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionEmailSender,
		Description: "Send emails",
		Params: []domain.ParamSpec{
			{Name: paramTo, Type: domain.ParamString, Required: true},
			{Name: paramSubject, Type: domain.ParamString, Required: true},
			{Name: paramBody, Type: domain.ParamString, Description: "inputs are used when empty"},
			{Name: paramCC, Type: domain.ParamAny, Description: "address or list of addresses"},
		},
	}
}

// Execute отправляет письмо.
func (s *EmailSender) Execute(ctx context.Context, req *Request) (*Result, error) {
	to := GetParamString(req.Params, paramTo)
	if _, err := mail.ParseAddress(to); err != nil {
		return Failure("email_sender: invalid recipient %q", to), nil
	}

	cc := GetParamStrings(req.Params, paramCC)
	for _, addr := range cc {
		if _, err := mail.ParseAddress(addr); err != nil {
			return Failure("email_sender: invalid cc %q", addr), nil
		}
	}

	body := GetParamString(req.Params, paramBody)
	if body == "" {
		body = bodyFromInputs(req)
	}

	msg := newMessage("email", to, GetParamString(req.Params, paramSubject), body)
	if len(cc) > 0 {
		msg.Meta["cc"] = strings.Join(cc, ",")
	}

	if err := deliver(ctx, s.deliverer, msg); err != nil {
		return nil, err
	}

	return Success(map[string]any{
		"sent":            true,
		"message_id":      msg.ID.String(),
		"to":              to,
		"subject":         msg.Subject,
		"content_preview": truncate(body, previewLength),
	}), nil
}

// SlackSender — сообщение в канал Slack через Deliverer.
type SlackSender struct {
	deliverer Deliverer
}

// NewSlackSender создаёт новый SlackSender.
func NewSlackSender(d Deliverer) *SlackSender {
	return &SlackSender{deliverer: d}
}

// Name возвращает имя действия.
func (s *SlackSender) Name() string {
	return ActionSlackSender
}

// Contract возвращает контракт параметров.
func (s *SlackSender) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionSlackSender,
		Description: "Post a message to a Slack channel",
		Params: []domain.ParamSpec{
			{Name: paramChannel, Type: domain.ParamString, Required: true},
			{Name: paramText, Type: domain.ParamString, Required: true},
			{Name: paramThreadTS, Type: domain.ParamString},
		},
	}
}

// Execute отправляет сообщение.
func (s *SlackSender) Execute(ctx context.Context, req *Request) (*Result, error) {
	channel := GetParamString(req.Params, paramChannel)
	if !strings.HasPrefix(channel, "#") && !strings.HasPrefix(channel, "@") {
		channel = "#" + channel
	}

	msg := newMessage("slack", channel, "", GetParamString(req.Params, paramText))
	if ts := GetParamString(req.Params, paramThreadTS); ts != "" {
		msg.Meta["thread_ts"] = ts
	}

	if err := deliver(ctx, s.deliverer, msg); err != nil {
		return nil, err
	}

	return Success(map[string]any{
		"sent":       true,
		"message_id": msg.ID.String(),
		"channel":    channel,
		"ts":         fmt.Sprintf("%d.%06d", msg.CreatedAt.Unix(), msg.CreatedAt.Nanosecond()/1000),
	}), nil
}

// GitHubAction — создание issue через Deliverer.
type GitHubAction struct {
	deliverer Deliverer
}

// NewGitHubAction создаёт новый GitHubAction.
func NewGitHubAction(d Deliverer) *GitHubAction {
	return &GitHubAction{deliverer: d}
}

// Name возвращает имя действия.
func (g *GitHubAction) Name() string {
	return ActionGitHubAction
}

// Contract возвращает контракт параметров.
func (g *GitHubAction) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionGitHubAction,
		Description: "Create a GitHub issue",
		Params: []domain.ParamSpec{
			{Name: paramOwner, Type: domain.ParamString, Required: true},
			{Name: paramRepo, Type: domain.ParamString, Required: true},
			{Name: paramTitle, Type: domain.ParamString, Required: true},
			{Name: paramBody, Type: domain.ParamString},
		},
	}
}

// Execute создаёт issue.
func (g *GitHubAction) Execute(ctx context.Context, req *Request) (*Result, error) {
	owner := GetParamString(req.Params, paramOwner)
	repo := GetParamString(req.Params, paramRepo)
	if strings.ContainsAny(owner, "/ ") || strings.ContainsAny(repo, "/ ") {
		return Failure("github_action: invalid repository %s/%s", owner, repo), nil
	}

	body := GetParamString(req.Params, paramBody)
	if body == "" {
		body = bodyFromInputs(req)
	}

	target := owner + "/" + repo
	msg := newMessage("github", target, GetParamString(req.Params, paramTitle), body)

	if err := deliver(ctx, g.deliverer, msg); err != nil {
		return nil, err
	}

	return Success(map[string]any{
		"created":    true,
		"message_id": msg.ID.String(),
		"repository": target,
		"title":      msg.Subject,
	}), nil
}
