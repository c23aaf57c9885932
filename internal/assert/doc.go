// Package assert проверяет захваченный ответ по ожиданиям шага.
//
// Каждый вид ожидания реализует интерфейс Check:
//
//	status       — StatusCheck
//	json         — JSONCheck
//	json_lengths — JSONLengthsCheck
//	headers      — HeadersCheck
//	contains     — ContainsCheck
//	sse          — SSECheck (результат sse.Validate)
//
// Evaluate не останавливается на первой ошибке: шаг получает
// полный список несовпадений.
package assert
