package steps

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Ошибки транспорта.
var (
	// ErrRequest — запрос не удалось построить или отправить.
	ErrRequest = errors.New("http request failed")

	// ErrCancelled — запрос отменён через context (таймаут или Ctrl-C).
	ErrCancelled = errors.New("http request cancelled")
)

// Transport — отправка HTTP запросов шагов сценария.
//
// Executor зависит только от этого интерфейса, поэтому в тестах
// его можно заменить фейком.
type Transport interface {
	// Do выполняет запрос. Таймаут и отмена задаются через ctx.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc — адаптер функции к Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do реализует Transport.
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request — полностью подставленный HTTP запрос.
type Request struct {
	// Method — HTTP метод в верхнем регистре.
	Method string

	// URL — абсолютный URL.
	URL string

	// Headers — заголовки запроса.
	Headers map[string]string

	// Query — параметры, добавляемые к URL.
	Query map[string]string

	// Body — тело: string и []byte отправляются как есть, остальное — JSON.
	Body any

	// Stream — не читать тело event-stream ответа, а вернуть его открытым.
	Stream bool
}

// Response — захваченный HTTP ответ.
type Response struct {
	// Status — HTTP статус.
	Status int

	// Headers — заголовки ответа.
	Headers http.Header

	// Body — тело ответа (пустое, если Stream != nil).
	Body []byte

	// Stream — открытое тело event-stream ответа. Закрывает получатель.
	Stream io.ReadCloser

	// Elapsed — время до получения заголовков (или тела целиком).
	Elapsed time.Duration
}

// ContentType возвращает media type ответа без параметров.
func (r *Response) ContentType() string {
	return MediaType(r.Headers.Get("Content-Type"))
}

// IsEventStream проверяет, что ответ — text/event-stream.
func (r *Response) IsEventStream() bool {
	return r.ContentType() == "text/event-stream"
}

// Close закрывает Stream, если он есть.
func (r *Response) Close() error {
	if r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// MediaType нормализует значение Content-Type.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsJSONContentType проверяет, что Content-Type описывает JSON
// (application/json, application/problem+json, ...).
func IsJSONContentType(contentType string) bool {
	return strings.Contains(MediaType(contentType), "json")
}
