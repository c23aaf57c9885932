// Package repo хранит историю запусков сценариев.
//
// Две реализации Store:
//   - PostgresStore — общая история для CI (pgx)
//   - SQLiteStore — локальный файл без внешних сервисов
//
// Open выбирает реализацию по схеме DSN.
package repo
