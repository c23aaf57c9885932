// Package loader загружает сценарии из файлов.
//
// Поддерживаются два формата:
//   - inline (.yaml, .yml) — весь файл один YAML документ
//   - prose (.scenario.md) — Markdown с front matter и блоками ```yaml scenario
//
// Оба формата приводятся к domain.Scenario и проходят одну валидацию.
// Ошибки возвращаются как *ParseError с путём и номером строки.
package loader
