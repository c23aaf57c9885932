// Checkpoint — исполнитель декларативных сценариев API.
//
// Использование:
//
//	checkpoint <command> [paths...] [flags]
//
// Команды:
//
//	run       Выполнить сценарии и вывести отчёт
//	watch     Выполнять сценарии по расписанию
//	validate  Проверить файлы сценариев
//	list      Показать найденные сценарии
//	history   Показать сохранённые запуски
package main

import (
	"os"

	"github.com/shaiso/Checkpoint/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:], os.Stdout, os.Stderr))
}
