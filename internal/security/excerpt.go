package security

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Excerpt は本文HTMLからテキストのみを抽出し、maxRunes文字で切り詰めた抜粋を返す。
// 切り詰めた場合は末尾に "…" を付与する。一覧表示のペイロード縮小に使用する。
func Excerpt(rawHTML string, maxRunes int) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))

	var b strings.Builder
	skip := 0 // script/style内のテキストは含めない
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF以外（不正なHTML）でも、それまでに得たテキストを返す
			return truncateRunes(collapseSpaces(b.String()), maxRunes)
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "p", "br", "li", "h2", "h3", "blockquote", "pre":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if n := string(name); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
