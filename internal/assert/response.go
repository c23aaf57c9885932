package assert

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/shaiso/Checkpoint/internal/sse"
	"github.com/shaiso/Checkpoint/internal/steps"
)

// Response — захваченный ответ, по которому вычисляются проверки.
type Response struct {
	// Status — HTTP статус.
	Status int

	// Headers — заголовки ответа.
	Headers http.Header

	// Body — сырое тело ответа (для contains).
	Body []byte

	// JSON — распарсенное тело, если IsJSON.
	JSON any

	// IsJSON — тело разобрано как JSON.
	IsJSON bool

	// Stream — результат валидации event-stream (nil, если поток не читался).
	Stream *sse.Result
}

// NewResponse строит Response из ответа транспорта.
//
// Тело разбирается как JSON, если Content-Type содержит "json",
// либо Content-Type не указан и тело является корректным JSON.
func NewResponse(resp *steps.Response) *Response {
	r := &Response{
		Status:  resp.Status,
		Headers: resp.Headers,
		Body:    resp.Body,
	}
	if r.Headers == nil {
		r.Headers = http.Header{}
	}

	ct := resp.Headers.Get("Content-Type")
	if steps.IsJSONContentType(ct) || ct == "" {
		if v, ok := ParseJSON(resp.Body); ok {
			r.JSON = v
			r.IsJSON = true
		}
	}
	return r
}

// Outputs возвращает значение для save и steps.<id>.outputs:
// сгруппированные события для потока, JSON для JSON тела, иначе текст.
func (r *Response) Outputs() any {
	switch {
	case r.Stream != nil:
		return r.Stream.Value()
	case r.IsJSON:
		return r.JSON
	default:
		return string(r.Body)
	}
}

// ParseJSON разбирает JSON, сохраняя числа как json.Number.
func ParseJSON(data []byte) (any, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}
