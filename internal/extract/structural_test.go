package extract

import (
	"strings"
	"testing"
)

func page(n int, markdown string) Page {
	return Page{PageNumber: n, Markdown: markdown}
}

func TestParseStructureBasicExam(t *testing.T) {
	pages := []Page{
		page(1, `# Greenwood Primary School
Primary 4 Mathematics
Total: 40 marks

Section A

1. What is 2 + 3? (2 marks)

2. Which number is even?
A. 3
B. 4
C. 5
D. 7

![diagram](img-0.jpeg)`),
		page(2, `Section B

3. Draw the next shape in the pattern. [3]

![pattern](img-1.jpeg)

4(a) Explain your answer. (4m)`),
	}

	result := ParseStructure(pages)

	if got := len(result.Questions); got != 4 {
		t.Fatalf("expected 4 questions, got %d", got)
	}

	wantNumbers := []string{"1", "2", "3", "4a"}
	wantPages := []int{1, 1, 2, 2}
	wantSections := []string{"Section A", "Section A", "Section B", "Section B"}
	wantMarks := []int{2, 0, 3, 4}

	for i, q := range result.Questions {
		if q.QuestionNumber != wantNumbers[i] {
			t.Errorf("question %d: number = %q, want %q", i, q.QuestionNumber, wantNumbers[i])
		}
		if q.PageNumber != wantPages[i] {
			t.Errorf("question %q: page = %d, want %d", q.QuestionNumber, q.PageNumber, wantPages[i])
		}
		if q.Section != wantSections[i] {
			t.Errorf("question %q: section = %q, want %q", q.QuestionNumber, q.Section, wantSections[i])
		}
		if wantMarks[i] == 0 {
			if q.Marks != nil {
				t.Errorf("question %q: marks = %d, want none", q.QuestionNumber, *q.Marks)
			}
		} else if q.Marks == nil || *q.Marks != wantMarks[i] {
			t.Errorf("question %q: marks = %v, want %d", q.QuestionNumber, q.Marks, wantMarks[i])
		}
	}

	mcq := result.Questions[1]
	if got := len(mcq.Options); got != 4 {
		t.Fatalf("question 2: expected 4 options, got %d", got)
	}
	if mcq.Options[0].Label != "A" || mcq.Options[0].Text != "3" {
		t.Errorf("question 2: first option = %+v", mcq.Options[0])
	}
	if !strings.Contains(mcq.Text, "Which number is even?") {
		t.Errorf("question 2: cleaned text lost the stem: %q", mcq.Text)
	}
	if strings.Contains(mcq.Text, "A. 3") {
		t.Errorf("question 2: cleaned text still contains option lines: %q", mcq.Text)
	}

	if got := len(mcq.NearbyImageIDs); got != 1 || mcq.NearbyImageIDs[0] != "img-0.jpeg" {
		t.Errorf("question 2: nearby images = %v", mcq.NearbyImageIDs)
	}
	if got := result.Questions[2].NearbyImageIDs; len(got) != 1 || got[0] != "img-1.jpeg" {
		t.Errorf("question 3: nearby images = %v", got)
	}

	if len(result.ImagePositions) != 2 {
		t.Errorf("expected 2 image positions, got %d", len(result.ImagePositions))
	}

	meta := result.Metadata
	if meta.Subject != "Math" {
		t.Errorf("subject = %q, want Math", meta.Subject)
	}
	if meta.Grade != "Primary 4" {
		t.Errorf("grade = %q, want Primary 4", meta.Grade)
	}
	if meta.School != "Greenwood Primary School" {
		t.Errorf("school = %q", meta.School)
	}
	if meta.TotalMarks == nil || *meta.TotalMarks != 40 {
		t.Errorf("total marks = %v, want 40", meta.TotalMarks)
	}

	for n := 1; n <= 2; n++ {
		if !strings.Contains(result.FullDocument, PageMarker(n)) {
			t.Errorf("full document missing marker for page %d", n)
		}
	}
}

// 题目区间必须覆盖从首个边界到文档末尾的整段文本，且互不重叠
func TestParseStructureSpansPartitionDocument(t *testing.T) {
	pages := []Page{
		page(1, "1. First question text here\n\nsome working space\n\n2. Second question text here"),
		page(2, "3. Third question text here\n\nmore text"),
	}

	result := ParseStructure(pages)
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(result.Questions))
	}

	totalLines := len(strings.Split(result.FullDocument, "\n"))
	for i, q := range result.Questions {
		if q.EndLine <= q.StartLine {
			t.Errorf("question %q: empty span [%d, %d)", q.QuestionNumber, q.StartLine, q.EndLine)
		}
		if i+1 < len(result.Questions) {
			next := result.Questions[i+1]
			if q.EndLine != next.StartLine {
				t.Errorf("gap between question %q and %q: %d != %d",
					q.QuestionNumber, next.QuestionNumber, q.EndLine, next.StartLine)
			}
		} else if q.EndLine != totalLines {
			t.Errorf("last question ends at %d, document has %d lines", q.EndLine, totalLines)
		}
	}
}

func TestParseStructureFiltersFalsePositives(t *testing.T) {
	pages := []Page{
		page(1, `1. NAME: John Tan
2. DATE: 2024-03-15
3. CLASS: 4B
4. TOTAL: 50
5. A
6. What is the capital of Malaysia?`),
	}

	result := ParseStructure(pages)
	if len(result.Questions) != 1 {
		t.Fatalf("expected only 1 real question, got %d", len(result.Questions))
	}
	if result.Questions[0].QuestionNumber != "6" {
		t.Errorf("question number = %q, want 6", result.Questions[0].QuestionNumber)
	}
}

func TestParseStructureFiltersYearHeadings(t *testing.T) {
	// 封面上的年份行长得像题号，不能当题目；两位数题号照常保留
	pages := []Page{
		page(1, `2024. Mid-Year Examination Paper
19. Name three primary colours.
2025) End-of-Year revision booklet`),
	}

	result := ParseStructure(pages)
	if len(result.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(result.Questions))
	}
	if result.Questions[0].QuestionNumber != "19" {
		t.Errorf("question number = %q, want 19", result.Questions[0].QuestionNumber)
	}
}

func TestExtractMarks(t *testing.T) {
	tests := []struct {
		text string
		want int // 0 表示不应提取到分值
	}{
		{"Solve for x. (2 marks)", 2},
		{"Solve for x. (1 mark)", 1},
		{"Solve for x. [3]", 3},
		{"Solve for x. (4m)", 4},
		{"Answer the question below.\n5 marks", 5},
		{"Solve for x.", 0},
	}

	for _, tt := range tests {
		got := extractMarks(tt.text)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("extractMarks(%q) = %d, want none", tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("extractMarks(%q) = %v, want %d", tt.text, got, tt.want)
		}
	}
}

func TestExtractMCQOptionsRequiresTwoDistinctLabels(t *testing.T) {
	single := "Pick one.\nA. The only option listed"
	if got := extractMCQOptions(single); got != nil {
		t.Errorf("single option should not produce MCQ options, got %v", got)
	}

	two := "Pick one.\nB) second\nA) first"
	got := extractMCQOptions(two)
	if len(got) != 2 {
		t.Fatalf("expected 2 options, got %d", len(got))
	}
	// 按标签排序
	if got[0].Label != "A" || got[1].Label != "B" {
		t.Errorf("options not sorted by label: %v", got)
	}
}

func TestExtractMetadataSubjectCanonical(t *testing.T) {
	tests := []struct {
		firstPage string
		want      string
	}{
		{"Primary 5 Maths Paper 1", "Math"},
		{"MATHEMATICS test", "Math"},
		{"English Language Paper 2", "English"},
		{"Science Exam", "Science"},
		{"History of the region", ""},
	}

	for _, tt := range tests {
		if got := extractMetadata(tt.firstPage).Subject; got != tt.want {
			t.Errorf("extractMetadata(%q).Subject = %q, want %q", tt.firstPage, got, tt.want)
		}
	}
}

func TestImageRefsIn(t *testing.T) {
	text := "See ![figure](img-3.jpeg) and ![](img-4.jpeg) below."
	got := ImageRefsIn(text)
	if len(got) != 2 || got[0] != "img-3.jpeg" || got[1] != "img-4.jpeg" {
		t.Errorf("ImageRefsIn = %v", got)
	}
	if got := ImageRefsIn("no images here"); got != nil {
		t.Errorf("ImageRefsIn on plain text = %v, want nil", got)
	}
}
