package service

import (
	"strings"
	"testing"
)

func TestRewriteImageRefs(t *testing.T) {
	urls := map[string]string{
		"img-0.jpeg": "https://storage.example.com/images/exam-1/img-0.png?sig=abc",
	}

	text := "Look at the diagram ![diagram](img-0.jpeg) and answer."
	got := rewriteImageRefs(text, urls)
	if !strings.Contains(got, urls["img-0.jpeg"]) {
		t.Errorf("url not substituted: %q", got)
	}
	if strings.Contains(got, "(img-0.jpeg)") {
		t.Errorf("source id still present: %q", got)
	}

	// 没有对应入库图片的引用保持原样
	untouched := "See ![x](img-9.jpeg) here."
	if got := rewriteImageRefs(untouched, urls); got != untouched {
		t.Errorf("unknown ref rewritten: %q", got)
	}

	if got := rewriteImageRefs("", urls); got != "" {
		t.Errorf("empty text rewritten to %q", got)
	}
	if got := rewriteImageRefs(text, nil); got != text {
		t.Errorf("nil url map must be a no-op, got %q", got)
	}
}

func TestSanitizeImageID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"img-0.jpeg", "img-0"},
		{"img-12.png", "img-12"},
		{"figure", "figure"},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		if got := sanitizeImageID(tt.in); got != tt.want {
			t.Errorf("sanitizeImageID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
