// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は氏名・会社名・自由記述などのプレーンテキスト入力からHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去した上で、エンティティを元の文字に戻す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したテキストを返す。
// "O'Brien" や "R&D" のような文字はエンティティのままにせず元に戻すが、
// 戻した結果に山括弧が現れた場合はそれも取り除く。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}
