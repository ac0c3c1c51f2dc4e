package actions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	// ActionWebScraper — загрузка текста страницы.
	ActionWebScraper = "web_scraper"

	paramSelector     = "selector"
	paramExtractLinks = "extract_links"
	paramMaxLines     = "max_lines"
)

// WebScraper — действие загрузки текстового содержимого URL.
//
// HTML разбирается на текстовые строки (script и style пропускаются).
// selector — фильтр строк по подстроке без учёта регистра.
//
// Data:
//
//	{
//	    "url": "https://techcrunch.com",
//	    "status_code": 200,
//	    "lines": ["...", "..."],
//	    "links": ["https://..."],   // только при extract_links
//	    "count": 2
//	}
type WebScraper struct {
	limiter *HostLimiter
	client  *http.Client
}

// NewWebScraper создаёт новый WebScraper.
func NewWebScraper(limiter *HostLimiter) *WebScraper {
	return &WebScraper{
		limiter: limiter,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Name возвращает имя действия.
func (s *WebScraper) Name() string {
	return ActionWebScraper
}

// Contract возвращает контракт параметров.
func (s *WebScraper) Contract() domain.ActionContract {
	return domain.ActionContract{
		Name:        ActionWebScraper,
		Description: "Fetch content from URLs",
		Params: []domain.ParamSpec{
			{Name: paramURL, Type: domain.ParamString, Required: true},
			{Name: paramSelector, Type: domain.ParamString, Description: "keep lines containing this text"},
			{Name: paramExtractLinks, Type: domain.ParamBool},
			{Name: paramMaxLines, Type: domain.ParamNumber},
		},
	}
}

// Execute загружает страницу и извлекает текст.
func (s *WebScraper) Execute(ctx context.Context, req *Request) (*Result, error) {
	target := GetParamString(req.Params, paramURL)
	if target == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidParams)
	}

	if err := s.limiter.Wait(ctx, target); err != nil {
		return nil, cancelled(ctx)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return Failure("failed to reach %s: %v", target, err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Failure("failed to reach %s (HTTP %d)", target, resp.StatusCode), nil
	}

	body := io.LimitReader(resp.Body, maxResponseBody)

	var lines, links []string
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		lines, links, err = extractHTML(body)
	} else {
		lines, err = extractPlain(body)
	}
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	if selector := GetParamString(req.Params, paramSelector); selector != "" {
		lines = filterLines(lines, selector)
	}
	if limit := GetParamInt(req.Params, paramMaxLines); limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	data := map[string]any{
		"url":         target,
		"status_code": resp.StatusCode,
		"lines":       stringsToAny(lines),
		"count":       len(lines),
	}
	if GetParamBool(req.Params, paramExtractLinks, false) {
		data["links"] = stringsToAny(links)
	}

	return Success(data), nil
}

// extractHTML возвращает текстовые строки и ссылки документа.
func extractHTML(r io.Reader) (lines, links []string, err error) {
	z := html.NewTokenizer(r)
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return lines, links, nil
			}
			return nil, nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "script", "style", "noscript":
				if tok.Type == html.StartTagToken {
					skip++
				}
			case "a":
				for _, attr := range tok.Attr {
					if attr.Key == "href" && attr.Val != "" {
						links = append(links, attr.Val)
					}
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			for _, line := range strings.Split(string(z.Text()), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
		}
	}
}

// extractPlain разбивает текст на непустые строки.
func extractPlain(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func filterLines(lines []string, selector string) []string {
	selector = strings.ToLower(selector)
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), selector) {
			result = append(result, line)
		}
	}
	return result
}

func stringsToAny(items []string) []any {
	result := make([]any, len(items))
	for i, s := range items {
		result[i] = s
	}
	return result
}
