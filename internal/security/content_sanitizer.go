// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は日記本文などユーザー入力のHTMLを保存前に許可リストで整形し、
// 他の画面で表示したときのXSSを防ぐ。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// httpsURL はimgのsrcに許可するURL形式。
var httpsURL = regexp.MustCompile(`^https://[^\s]+$`)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// Sanitize はHTMLを許可リストに従って整形して返す。同一入力には同一出力を返す。
	Sanitize(rawHTML string) string
}

// contentSanitizer はbluemondayのポリシーを保持するContentSanitizerの実装。
// ポリシーは生成後に変更しないため、複数goroutineから安全に使える。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は日記本文向けのContentSanitizerを生成する。
//   - 許可タグ: p, br, h2, h3, ul, ol, li, blockquote, pre, code, strong, em, u, s, a, img
//   - a: hrefのみ。外部リンクにはtarget="_blank"とrel="noopener noreferrer"を付与
//   - img: srcはhttpsのみ、altを許可
//   - script, style, iframeおよびon*属性は除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h2", "h3", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "u", "s",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http", "mailto")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsURL).OnElements("img")

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var _ ContentSanitizer = (*contentSanitizer)(nil)
