// Package monitor はモニターのドメインロジックを提供する。
// モニターのCRUD、キーワードマッチング、実行エグゼキューター、
// チェック間隔に基づくスケジューラーを含む。
package monitor

import "strings"

// MatchKeywords はテキストにマッチしたキーワードを返す。
// 大文字小文字を区別しない部分一致で、結果はkeywordsの入力順を保ち、
// 重複するキーワードは最初の1件のみ含む。マッチがなければ空スライスを返す。
func MatchKeywords(text string, keywords []string) []string {
	lowered := strings.ToLower(text)
	matched := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		if strings.Contains(lowered, key) {
			matched = append(matched, kw)
			seen[key] = struct{}{}
		}
	}
	return matched
}

// MatchKeywordsUnion はタイトルと本文を独立にマッチングし、和集合を返す。
// 結果はkeywordsの入力順を保ち、重複しない。キーワードがタイトルと本文の
// 境界をまたいでマッチすることはない。
func MatchKeywordsUnion(title, body string, keywords []string) []string {
	loweredTitle := strings.ToLower(title)
	loweredBody := strings.ToLower(body)
	matched := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		if strings.Contains(loweredTitle, key) || strings.Contains(loweredBody, key) {
			matched = append(matched, kw)
			seen[key] = struct{}{}
		}
	}
	return matched
}
