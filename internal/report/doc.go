// Package report форматирует результаты запуска.
//
// Форматы: json и yaml (машиночитаемые, длительности в миллисекундах)
// и text (для терминала). Sink — общий интерфейс для получателей
// результатов: истории запусков (repo) и очереди событий (mq).
package report
