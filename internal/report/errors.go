package report

import "errors"

// Ошибки отчётов.
var (
	// ErrUnknownFormat — неизвестный формат отчёта.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrWriteReport — не удалось записать файл отчёта.
	ErrWriteReport = errors.New("failed to write report")
)
