package service

import (
	"exam_tutor_backend/internal/extract"
	"strings"
	"testing"
)

func TestTrailingPages(t *testing.T) {
	pages := []extract.Page{
		{PageNumber: 1}, {PageNumber: 2}, {PageNumber: 3}, {PageNumber: 4}, {PageNumber: 5},
	}

	got := trailingPages(pages, 4)
	if len(got) != 4 || got[0].PageNumber != 2 {
		t.Errorf("window 4 over 5 pages = %v", pageNumbers(got))
	}

	// 窗口大于总页数时返回全部页
	got = trailingPages(pages, 10)
	if len(got) != 5 {
		t.Errorf("window 10 over 5 pages = %v", pageNumbers(got))
	}

	got = trailingPages(pages, 0)
	if len(got) != 5 {
		t.Errorf("window 0 must mean no limit, got %v", pageNumbers(got))
	}
}

func pageNumbers(pages []extract.Page) []int {
	nums := make([]int, 0, len(pages))
	for _, p := range pages {
		nums = append(nums, p.PageNumber)
	}
	return nums
}

func TestJoinPagesKeepsPageMarkers(t *testing.T) {
	pages := []extract.Page{
		{PageNumber: 7, Markdown: "Answer Key\n1. B"},
		{PageNumber: 8, Markdown: "2. 42"},
	}

	got := joinPages(pages)
	if !strings.Contains(got, extract.PageMarker(7)) || !strings.Contains(got, extract.PageMarker(8)) {
		t.Errorf("page markers missing:\n%s", got)
	}
	if strings.Index(got, "Answer Key") > strings.Index(got, "2. 42") {
		t.Errorf("page order lost:\n%s", got)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"high", "high"},
		{"HIGH", "high"},
		{" Medium ", "medium"},
		{"low", "low"},
		{"certain", "low"}, // 未知取值保守处理
		{"", "low"},
	}
	for _, tt := range tests {
		if got := normalizeConfidence(tt.in); got != tt.want {
			t.Errorf("normalizeConfidence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
