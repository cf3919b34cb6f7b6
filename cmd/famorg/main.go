// Command famorg は家族向けタスク・日記管理APIのエントリーポイント。
//
// サブコマンド: serve（デフォルト）, worker, migrate, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/famorg/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "famorg: %v\n", err)
		os.Exit(1)
	}
}
