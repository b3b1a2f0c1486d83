// Command genstudio はAI画像・動画生成ツールのサーバーとワーカーを起動する。
//
//	genstudio [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/genstudio/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "genstudio: %v\n", err)
		os.Exit(1)
	}
}
