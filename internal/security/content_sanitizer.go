// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが投稿した記事のタイトル・本文・タグをサニタイズし、
// 保存済みコンテンツを経由したXSSを防ぐ。
// bluemondayライブラリの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は記事コンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeContent は本文HTMLをサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, img）のみを通過させる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeContent(rawHTML string) string

	// SanitizeText はタイトル・タグ用にすべてのHTMLを除去し、前後の空白を取り除く。
	SanitizeText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	content *bluemonday.Policy
	text    *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 本文: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, h2, h3, img
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
//   - タイトル・タグ: 全タグ除去（StrictPolicy）
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "h2", "h3",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &contentSanitizer{
		content: p,
		text:    bluemonday.StrictPolicy(),
	}
}

// SanitizeContent は本文HTMLをサニタイズする。
func (s *contentSanitizer) SanitizeContent(rawHTML string) string {
	return strings.TrimSpace(s.content.Sanitize(rawHTML))
}

// SanitizeText はプレーンテキスト項目からHTMLを除去する。
// StrictPolicyはエスケープ済みの文字列を返すため、保存用に元の文字へ戻す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.text.Sanitize(raw)))
}

// NormalizeTags はタグをサニタイズし、空要素と重複（大文字小文字を区別しない）を除去する。
func NormalizeTags(s ContentSanitizerService, tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		clean := s.SanitizeText(tag)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}
