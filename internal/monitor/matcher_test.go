package monitor

import (
	"reflect"
	"testing"
)

func TestMatchKeywords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		keywords []string
		want     []string
	}{
		{
			name:     "大文字小文字を区別しない",
			text:     "Golang 1.25 Released Today",
			keywords: []string{"golang", "released"},
			want:     []string{"golang", "released"},
		},
		{
			name:     "部分一致でマッチする",
			text:     "kubernetes operators are neat",
			keywords: []string{"kube"},
			want:     []string{"kube"},
		},
		{
			name:     "入力順を保持する",
			text:     "rust and go and zig",
			keywords: []string{"zig", "go", "rust"},
			want:     []string{"zig", "go", "rust"},
		},
		{
			name:     "重複キーワードは1件のみ",
			text:     "go go go",
			keywords: []string{"go", "GO", "Go"},
			want:     []string{"go"},
		},
		{
			name:     "マッチなしは空スライス",
			text:     "nothing relevant here",
			keywords: []string{"golang"},
			want:     []string{},
		},
		{
			name:     "空テキストはマッチしない",
			text:     "",
			keywords: []string{"golang"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchKeywords(tt.text, tt.keywords)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchKeywords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchKeywordsUnion(t *testing.T) {
	got := MatchKeywordsUnion("Go release", "performance improvements", []string{"release", "performance"})
	want := []string{"release", "performance"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchKeywordsUnion() = %v, want %v", got, want)
	}

	// タイトルと本文の境界をまたぐマッチは発生しない
	got = MatchKeywordsUnion("foo", "bar", []string{"foobar"})
	if len(got) != 0 {
		t.Errorf("境界をまたぐマッチは発生しないべきです: %v", got)
	}
}
