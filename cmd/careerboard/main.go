// Command careerboard は求人ボードAPIのエントリーポイント。
//
// 使い方:
//
//	careerboard [serve]        APIサーバーを起動する
//	careerboard migrate [down] マイグレーションを適用（downで1つ取り消し）する
//	careerboard healthcheck    ローカルの/healthを確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/careerboard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "careerboard: %v\n", err)
		os.Exit(1)
	}
}
