// Command astroline はCartPanda Webhookによるユーザープロビジョニングと
// 日次上限付きラブスケッチ生成APIを提供する。
//
// 使い方:
//
//	astroline [serve|worker|migrate [down [N]]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/astroline/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "astroline: %v\n", err)
		os.Exit(1)
	}
}
