// Package steps содержит HTTP транспорт шагов сценария.
//
// # Интерфейс Transport
//
//	type Transport interface {
//	    Do(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит уже подставленные значения (после engine.RenderValue):
//   - Method, URL — метод и абсолютный URL
//   - Headers, Query — заголовки и параметры
//   - Body — string/[]byte отправляются как есть, остальное сериализуется в JSON
//   - Stream — вернуть тело text/event-stream открытым
//
// Response содержит:
//   - Status, Headers, Body — захваченный ответ
//   - Stream — открытое тело потока (закрывает получатель)
//
// # HTTPTransport
//
//	transport := steps.NewHTTPTransport(steps.DefaultHTTPConfig())
//	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
//	defer cancel()
//	resp, err := transport.Do(ctx, req)
//
// # Обработка ошибок
//
//	var (
//	    ErrRequest   // запрос не удалось отправить или прочитать ответ
//	    ErrCancelled // context отменён или истёк
//	)
//
// Retry не выполняется: упавший запрос — упавший шаг.
package steps
