// agen8 — инструмент командной строки движка workflow.
//
// Использование:
//
//	agen8 [--json] [--log-level LEVEL] <command> [flags]
//
// Команды:
//
//	validate  Проверка графа без выполнения
//	run       Выполнение графа в процессе
//	actions   Каталог действий
//	submit    Отправка графа в очередь runner
//	reports   Архив отчётов
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shaiso/agen8/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		// Невалидный граф и failed run уже напечатаны командой
		if !errors.Is(err, cli.ErrGraphInvalid) && !errors.Is(err, cli.ErrRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
