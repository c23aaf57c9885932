package repo

import "errors"

// Ошибки хранилища истории.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDSN — DSN не указан или не распознан.
	ErrInvalidDSN = errors.New("invalid history dsn")

	// ErrAlreadyExists — запуск с таким run_id уже сохранён.
	ErrAlreadyExists = errors.New("already exists")
)
