// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はクライアントから受け取った自由記述テキストから
// HTMLマークアップを除去し、プレーンテキストとして保存できる形に整える。
// bluemondayのStrictPolicyを使用し、全てのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はマークアップ除去機能のインターフェースを定義する。
type TextSanitizerService interface {
	// StripMarkup はHTMLタグを全て除去したプレーンテキストを返す。
	// script/styleの中身も除去される。エンティティは復元され、前後の空白は取り除かれる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	StripMarkup(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのPolicyはスレッドセーフなため共有して使用する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxStripPasses はエンティティで多重に包まれたマークアップを剥がす上限回数。
const maxStripPasses = 8

// StripMarkup はHTMLタグを除去する。
// bluemondayはテキストをエスケープして返すため、エンティティを戻す。
// 戻した結果に&lt;script&gt;由来のタグが現れることがあるので、出力が変化しなくなるまで繰り返す。
// 上限回数で収束しない入力はエスケープしたまま返し、生のタグを残さない。
func (s *textSanitizer) StripMarkup(raw string) string {
	if raw == "" {
		return ""
	}

	out := raw
	for range maxStripPasses {
		next := s.strip(out)
		if next == out {
			return out
		}
		out = next
	}
	return strings.TrimSpace(s.policy.Sanitize(out))
}

func (s *textSanitizer) strip(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
