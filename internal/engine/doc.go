// Package engine содержит движок шаблонов сценариев.
//
// Включает:
//   - scope.go    — область видимости переменных одного выполнения
//   - template.go — разрешение placeholder'ов {{ expr }}
//   - jsonpath.go — обход JSON по пути и сравнение значений
//
// Engine не знает про HTTP и файлы: он получает значения и Scope
// и возвращает подставленные значения либо UnresolvedError.
package engine
