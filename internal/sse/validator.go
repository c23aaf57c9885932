package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shaiso/Checkpoint/internal/domain"
	"github.com/shaiso/Checkpoint/internal/engine"
)

// Ошибки валидации потока.
var (
	// ErrTimeout — не все matcher'ы совпали до окончания ожидания.
	ErrTimeout = errors.New("sse expectation not met")

	// ErrDeadline — истекло время ожидания событий.
	ErrDeadline = errors.New("wait deadline exceeded")

	// ErrStreamEnded — поток закончился раньше, чем совпали все matcher'ы.
	ErrStreamEnded = errors.New("stream ended")

	// ErrForbiddenEvent — в потоке встретилось событие из has_no_events.
	ErrForbiddenEvent = errors.New("forbidden event received")
)

// TimeoutError — первый не совпавший matcher и причина остановки.
type TimeoutError struct {
	Index   int                 // индекс matcher'а
	Matcher domain.EventMatcher // сам matcher
	Wait    time.Duration       // граница ожидания
	Cause   error               // ErrDeadline, ErrStreamEnded, ошибка чтения или context
}

// Error реализует интерфейс error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("event #%d (%s) not received: %v", e.Index+1, e.Matcher, e.Cause)
}

// Unwrap возвращает ErrTimeout и причину.
func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Cause}
}

// MissingEventsError — события из has_events, не встреченные в потоке.
type MissingEventsError struct {
	Events []string
	Wait   time.Duration
	Cause  error
}

// Error реализует интерфейс error.
func (e *MissingEventsError) Error() string {
	return fmt.Sprintf("events %s not received: %v", strings.Join(e.Events, ", "), e.Cause)
}

// Unwrap возвращает ErrTimeout и причину.
func (e *MissingEventsError) Unwrap() []error {
	return []error{ErrTimeout, e.Cause}
}

// ForbiddenEventError — событие из has_no_events и его позиция в потоке.
type ForbiddenEventError struct {
	Event string
	Frame int // индекс кадра в Result.Frames
}

// Error реализует интерфейс error.
func (e *ForbiddenEventError) Error() string {
	return fmt.Sprintf("forbidden event %q received in frame #%d", e.Event, e.Frame+1)
}

// Unwrap возвращает ErrForbiddenEvent.
func (e *ForbiddenEventError) Unwrap() error {
	return ErrForbiddenEvent
}

// Result — итог валидации потока.
type Result struct {
	// Frames — прочитанные кадры (включая шум).
	Frames []Frame

	// Matched — сколько matcher'ов совпало.
	Matched int

	// Hits — кадры, совпавшие с matcher'ами, по индексу matcher'а.
	Hits []Frame

	// Err — nil при успехе, иначе *TimeoutError, *MissingEventsError
	// или *ForbiddenEventError.
	Err error
}

// OK возвращает true, если все ожидания выполнены.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Value возвращает сгруппированное значение {event: [data, ...]}.
func (r *Result) Value() map[string]any {
	return Group(r.Frames)
}

// SaveError — путь save matcher'а, не найденный в payload кадра.
type SaveError struct {
	Name string
	Path string
	Err  error
}

// Saves вычисляет save matcher'ов по совпавшим кадрам.
// Пути разрешаются в JSON payload кадра.
func (r *Result) Saves(matchers []domain.EventMatcher) (map[string]any, []SaveError) {
	saved := make(map[string]any)
	var errs []SaveError
	for i, m := range matchers {
		if len(m.Save) == 0 || i >= len(r.Hits) {
			continue
		}
		payload, ok := r.Hits[i].JSON()
		for _, name := range sortedKeys(m.Save) {
			path := m.Save[name]
			if !ok {
				errs = append(errs, SaveError{Name: name, Path: path, Err: errNotJSON})
				continue
			}
			value, err := engine.Lookup(payload, path)
			if err != nil {
				errs = append(errs, SaveError{Name: name, Path: path, Err: err})
				continue
			}
			saved[name] = value
		}
	}
	return saved, errs
}

// Validate читает поток и проверяет его по ожиданию.
//
// Matcher'ы Events сопоставляются с кадрами по порядку; кадр, не
// подходящий под текущий matcher, пропускается. HasEvents должны
// встретиться в любом месте потока. Событие из HasNoEvents сразу
// завершает валидацию с ошибкой; если HasNoEvents задан, поток
// читается до конца или до истечения wait, и остановка при
// выполненных остальных ожиданиях считается успехом.
//
// body закрывается на любом пути выхода; чтение идёт в отдельной
// горутине, которую разблокирует закрытие body.
// wait <= 0 — без ограничения (кроме ctx).
func Validate(ctx context.Context, body io.ReadCloser, exp domain.SSEExpectation, wait time.Duration) *Result {
	res := &Result{}
	defer body.Close()

	matchers := exp.Events
	seen := make(map[string]bool)
	forbidden := make(map[string]bool, len(exp.HasNoEvents))
	for _, name := range exp.HasNoEvents {
		forbidden[name] = true
	}
	monitor := len(forbidden) > 0

	missing := func() []string {
		var out []string
		for _, name := range exp.HasEvents {
			if !seen[name] && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
		return out
	}
	satisfied := func() bool {
		return res.Matched == len(matchers) && len(missing()) == 0
	}

	if !monitor && satisfied() {
		return res
	}

	frames := make(chan Frame)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(frames)
		reader := NewReader(body)
		for {
			f, err := reader.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			select {
			case frames <- *f:
			case <-done:
				return
			}
		}
	}()

	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	stop := func(cause error) *Result {
		switch {
		case res.Matched < len(matchers):
			res.Err = &TimeoutError{
				Index:   res.Matched,
				Matcher: matchers[res.Matched],
				Wait:    wait,
				Cause:   cause,
			}
		case len(missing()) > 0:
			res.Err = &MissingEventsError{Events: missing(), Wait: wait, Cause: cause}
		case !monitoringEnd(cause):
			res.Err = fmt.Errorf("%w: %w", ErrTimeout, cause)
		}
		return res
	}

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					return stop(err)
				default:
					return stop(ErrStreamEnded)
				}
			}
			res.Frames = append(res.Frames, f)
			if forbidden[f.Event] {
				res.Err = &ForbiddenEventError{Event: f.Event, Frame: len(res.Frames) - 1}
				return res
			}
			seen[f.Event] = true
			if res.Matched < len(matchers) && Matches(matchers[res.Matched], f) {
				res.Hits = append(res.Hits, f)
				res.Matched++
			}
			if !monitor && satisfied() {
				return res
			}

		case <-deadline:
			return stop(ErrDeadline)

		case <-ctx.Done():
			return stop(ctx.Err())
		}
	}
}

// monitoringEnd — причины остановки, при которых наблюдение за
// has_no_events считается завершённым успешно.
func monitoringEnd(cause error) bool {
	return errors.Is(cause, ErrStreamEnded) || errors.Is(cause, ErrDeadline) ||
		errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled)
}
