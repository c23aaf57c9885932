package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// DefaultEvent — имя события, если поле event: не задано.
const DefaultEvent = "message"

// Frame — один кадр text/event-stream.
type Frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
	Retry int    `json:"retry,omitempty"`
}

// Reader читает кадры из потока.
//
// Правила формата:
//   - event:, data:, id:, retry: — поля кадра
//   - несколько data: склеиваются через "\n"
//   - строки, начинающиеся с ":", — комментарии
//   - пустая строка завершает кадр
//   - один пробел после ":" отбрасывается
//   - кадр без event и data не возвращается
type Reader struct {
	r *bufio.Reader

	event    string
	data     []string
	id       string
	retry    int
	hasEvent bool
	hasData  bool
}

// NewReader создаёт Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next возвращает следующий кадр. В конце потока возвращает io.EOF;
// незавершённый кадр в конце потока тоже возвращается.
func (r *Reader) Next() (*Frame, error) {
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		atEOF := err != nil

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if frame := r.dispatch(); frame != nil {
				return frame, nil
			}
		} else {
			r.field(line)
		}

		if atEOF {
			if frame := r.dispatch(); frame != nil {
				return frame, nil
			}
			return nil, io.EOF
		}
	}
}

func (r *Reader) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "event":
		r.event = value
		r.hasEvent = true
	case "data":
		r.data = append(r.data, value)
		r.hasData = true
	case "id":
		r.id = value
	case "retry":
		if n, err := strconv.Atoi(value); err == nil {
			r.retry = n
		}
	}
}

// dispatch возвращает накопленный кадр и сбрасывает состояние.
func (r *Reader) dispatch() *Frame {
	defer r.reset()

	if !r.hasEvent && !r.hasData {
		return nil
	}

	event := r.event
	if event == "" {
		event = DefaultEvent
	}
	return &Frame{
		Event: event,
		Data:  strings.Join(r.data, "\n"),
		ID:    r.id,
		Retry: r.retry,
	}
}

func (r *Reader) reset() {
	r.event = ""
	r.data = r.data[:0]
	r.id = ""
	r.retry = 0
	r.hasEvent = false
	r.hasData = false
}

// ParseAll читает все кадры из потока.
func ParseAll(r io.Reader) ([]Frame, error) {
	reader := NewReader(r)
	var frames []Frame
	for {
		f, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, *f)
	}
}
