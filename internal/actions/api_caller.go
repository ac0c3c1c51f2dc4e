package actions

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionAPICaller — HTTP запрос к внешнему API.
	ActionAPICaller = "api_caller"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Ключи параметров HTTP запроса.
const (
	paramMethod          = "method"
	paramURL             = "url"
	paramHeaders         = "headers"
	paramBody            = "body"
	paramFollowRedirects = "follow_redirects"
	paramValidateSSL     = "validate_ssl"
	paramTimeoutSec      = "timeout_sec"
)

// APICaller — действие HTTP запроса.
//
// Параметры:
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer xxx"},
//	    "body": {"summary": "{{ .Inputs.ai_1.summary }}"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 30
//	}
//
// Data:
//
//	{
//	    "status_code": 200,
//	    "headers": {"Content-Type": "application/json", ...},
//	    "body": {...}  // parsed JSON or string
//	}
//
// Ответ со статусом >= 400 — failure.
type APICaller struct {
	limiter *HostLimiter
}

// NewAPICaller создаёт новый APICaller.
func NewAPICaller(limiter *HostLimiter) *APICaller {
	return &APICaller{limiter: limiter}
}

// Name возвращает имя действия.
func (a *APICaller) Name() string {
	return ActionAPICaller
}

// Contract возвращает контракт параметров.
func (a *APICaller) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionAPICaller,
		Description: "Make HTTP requests",
		Params: []domain.ParamSpec{
			{Name: paramURL, Type: domain.ParamString, Required: true, Description: "request URL"},
			{Name: paramMethod, Type: domain.ParamString, Description: "HTTP method, GET by default"},
			{Name: paramHeaders, Type: domain.ParamObject},
			{Name: paramBody, Type: domain.ParamAny, Description: "string or JSON value"},
			{Name: paramFollowRedirects, Type: domain.ParamBool},
			{Name: paramValidateSSL, Type: domain.ParamBool},
			{Name: paramTimeoutSec, Type: domain.ParamNumber},
		},
	}
}

// Execute выполняет HTTP запрос.
func (a *APICaller) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg, err := parseHTTPConfig(req.Params)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, cfg.URL); err != nil {
		return nil, cancelled(ctx)
	}

	client := buildHTTPClient(cfg)

	httpReq, err := buildHTTPRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := parseHTTPResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		return &Result{Status: domain.ActionStatusFailure, Data: data, Error: httpErr.Error()}, nil
	}

	return Success(data), nil
}

// httpConfig — распарсенные параметры HTTP запроса.
type httpConfig struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
	TimeoutSec      int
}

// parseHTTPConfig парсит параметры HTTP запроса.
func parseHTTPConfig(params map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:          GetParamString(params, paramMethod),
		URL:             GetParamString(params, paramURL),
		Headers:         GetParamMapString(params, paramHeaders),
		Body:            params[paramBody],
		FollowRedirects: GetParamBool(params, paramFollowRedirects, true),
		ValidateSSL:     GetParamBool(params, paramValidateSSL, true),
		TimeoutSec:      GetParamInt(params, paramTimeoutSec),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidParams)
	}

	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

// buildHTTPClient создаёт HTTP клиент с нужными настройками.
// Таймаут узла приходит через ctx; timeout_sec может только сократить его.
func buildHTTPClient(cfg *httpConfig) *http.Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.ValidateSSL},
		},
	}
}

// buildHTTPRequest создаёт HTTP запрос.
func buildHTTPRequest(ctx context.Context, cfg *httpConfig) (*http.Request, error) {
	var bodyReader io.Reader

	if cfg.Body != nil {
		bodyBytes, err := serializeBody(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, hasContentType := cfg.Headers["Content-Type"]; !hasContentType {
			cfg.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseHTTPResponse парсит HTTP ответ в data.
func parseHTTPResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}

// HTTPError — ошибка HTTP запроса.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
