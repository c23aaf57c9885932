package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// maxResponseBody — ограничение на размер читаемого тела ответа.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// HTTPConfig — настройки HTTPTransport.
type HTTPConfig struct {
	// ValidateSSL — проверять сертификаты (default: true).
	ValidateSSL bool

	// FollowRedirects — следовать редиректам (default: true).
	FollowRedirects bool

	// MaxBodySize — ограничение тела ответа (default: 10 MB).
	MaxBodySize int64

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultHTTPConfig возвращает настройки по умолчанию.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		ValidateSSL:     true,
		FollowRedirects: true,
		MaxBodySize:     maxResponseBody,
	}
}

// HTTPTransport — Transport поверх net/http.
//
// Таймаут у клиента не задан: время жизни запроса (и чтения
// потока) ограничивается context'ом шага.
type HTTPTransport struct {
	client  *http.Client
	maxBody int64
	logger  *slog.Logger
}

// NewHTTPTransport создаёт HTTPTransport.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = maxResponseBody
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &HTTPTransport{
		client:  buildClient(cfg),
		maxBody: cfg.MaxBodySize,
		logger:  cfg.Logger,
	}
}

// Do выполняет HTTP запрос.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRequest, err)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	out := &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}

	if req.Stream && MediaType(resp.Header.Get("Content-Type")) == "text/event-stream" {
		out.Stream = resp.Body
		out.Elapsed = time.Since(start)
		t.logger.Debug("event stream opened", "method", req.Method, "url", httpReq.URL.String(), "status", resp.StatusCode)
		return out, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: read response body: %v", ErrRequest, err)
	}
	if int64(len(body)) > t.maxBody {
		return nil, fmt.Errorf("%w: response body exceeds limit of %d bytes", ErrRequest, t.maxBody)
	}
	out.Body = body
	out.Elapsed = time.Since(start)

	t.logger.Debug("http request completed",
		"method", req.Method,
		"url", httpReq.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", out.Elapsed.Milliseconds(),
	)

	return out, nil
}

// buildClient создаёт HTTP клиент с нужными настройками.
func buildClient(cfg HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !cfg.ValidateSSL,
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		CheckRedirect: checkRedirect,
		Transport:     transport,
	}
}

// buildRequest создаёт HTTP запрос.
func buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := WithQuery(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	contentType := ""
	if req.Body != nil {
		bodyBytes, err := EncodeBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
		if _, isText := req.Body.(string); !isText {
			contentType = "application/json"
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	return httpReq, nil
}

// EncodeBody сериализует тело запроса.
func EncodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// WithQuery добавляет параметры к URL. Ключи сортируются для детерминизма.
func WithQuery(rawURL string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := u.Query()
	for _, k := range keys {
		values.Set(k, query[k])
	}
	u.RawQuery = values.Encode()

	return u.String(), nil
}

// JoinURL присоединяет относительный URL к base_url.
// Абсолютные URL (со схемой) возвращаются без изменений.
func JoinURL(baseURL, rawURL string) string {
	if baseURL == "" || isAbsoluteURL(rawURL) {
		return rawURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(rawURL, "/")
}

// isAbsoluteURL проверяет наличие схемы. "://" в query не делает URL абсолютным.
func isAbsoluteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// FlattenHeaders превращает http.Header в map для отчётов.
func FlattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}
