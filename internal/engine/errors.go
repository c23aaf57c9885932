package engine

import "errors"

// Ошибки разрешения шаблонов.
var (
	// ErrUnresolvedVariable — placeholder не удалось разрешить.
	ErrUnresolvedVariable = errors.New("unresolved variable")

	// ErrPathNotFound — JSON path не существует в значении.
	ErrPathNotFound = errors.New("path not found")
)

// UnresolvedError — ошибка разрешения placeholder'а с контекстом.
type UnresolvedError struct {
	Expr   string // выражение внутри {{ }}
	Reason string // почему не удалось разрешить
	Err    error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *UnresolvedError) Error() string {
	if e.Reason == "" {
		return "unresolved variable {{ " + e.Expr + " }}"
	}
	return "unresolved variable {{ " + e.Expr + " }}: " + e.Reason
}

// Unwrap возвращает базовую ошибку.
func (e *UnresolvedError) Unwrap() error {
	if e.Err == nil {
		return ErrUnresolvedVariable
	}
	return e.Err
}

// Is позволяет errors.Is(err, ErrUnresolvedVariable) для любой причины.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolvedVariable
}

func newUnresolved(expr, reason string, err error) *UnresolvedError {
	return &UnresolvedError{Expr: expr, Reason: reason, Err: err}
}

// PathError — ошибка обхода JSON path.
type PathError struct {
	Path    string // полный путь
	Segment string // сегмент, на котором обход остановился
	Reason  string
}

// Error реализует интерфейс error.
func (e *PathError) Error() string {
	return "path " + e.Path + ": segment " + e.Segment + ": " + e.Reason
}

// Unwrap возвращает ErrPathNotFound.
func (e *PathError) Unwrap() error {
	return ErrPathNotFound
}
