package service

import (
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/model"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestMergeQuestionStructuralFactsWin(t *testing.T) {
	structural := extract.StructuralQuestion{
		QuestionNumber: "2",
		Text:           "raw question text ![x](img-0.jpeg)",
		PageNumber:     3,
		Marks:          intPtr(5),
		Section:        "Section B",
		NearbyImageIDs: []string{"img-0.jpeg"},
	}
	enriched := map[string]enrichedQuestion{
		"2": {
			QuestionNumber: "Q2",
			QuestionText:   "Cleaned question text",
			QuestionType:   "short_answer",
			ExpectedAnswer: "42",
			ConfirmedImageIds: []string{
				"img-0.jpeg",
				"img-far-away.jpeg", // 不在本题邻近图片集的 ID 必须被丢弃
			},
			SectionInstructions: "Answer all questions.",
		},
	}

	got := mergeQuestion(structural, enriched)

	// 位置事实来自结构化解析
	if got.QuestionNumber != "2" || got.PageNumber != 3 || got.Section != "Section B" {
		t.Errorf("positional facts changed: %+v", got)
	}
	if got.Marks == nil || *got.Marks != 5 {
		t.Errorf("marks = %v, want 5", got.Marks)
	}

	// 语义事实来自增强结果
	if got.Text != "Cleaned question text" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Type != model.QuestionTypeShortAnswer {
		t.Errorf("type = %q", got.Type)
	}
	if got.ExpectedAnswer != "42" {
		t.Errorf("expectedAnswer = %q", got.ExpectedAnswer)
	}
	if got.SectionInstructions != "Answer all questions." {
		t.Errorf("sectionInstructions = %q", got.SectionInstructions)
	}
	if len(got.ImageIDs) != 1 || got.ImageIDs[0] != "img-0.jpeg" {
		t.Errorf("imageIDs = %v, ids outside the nearby set must be filtered", got.ImageIDs)
	}
}

func TestMergeQuestionFallbackWithoutEnrichment(t *testing.T) {
	mcqStructural := extract.StructuralQuestion{
		QuestionNumber: "1",
		Text:           "Pick the even number",
		PageNumber:     1,
		Options: []extract.MCQOption{
			{Label: "A", Text: "3"},
			{Label: "B", Text: "4"},
		},
		NearbyImageIDs: []string{"img-0.jpeg"},
	}

	got := mergeQuestion(mcqStructural, map[string]enrichedQuestion{})
	if got.Type != model.QuestionTypeMCQ {
		t.Errorf("type = %q, want mcq when two options detected", got.Type)
	}
	if len(got.Options) != 2 {
		t.Errorf("options = %v", got.Options)
	}
	// 降级时不猜测图片归属
	if len(got.ImageIDs) != 0 {
		t.Errorf("imageIDs = %v, want empty on fallback", got.ImageIDs)
	}

	plain := extract.StructuralQuestion{QuestionNumber: "2", Text: "Explain."}
	got = mergeQuestion(plain, map[string]enrichedQuestion{})
	if got.Type != model.QuestionTypeShortAnswer {
		t.Errorf("type = %q, want short_answer without options", got.Type)
	}
}

func TestMergeQuestionMatchesByNormalizedNumber(t *testing.T) {
	structural := extract.StructuralQuestion{QuestionNumber: "1(a)", Text: "raw"}
	enriched := map[string]enrichedQuestion{
		"1a": {QuestionText: "cleaned", QuestionType: "long_answer"},
	}

	got := mergeQuestion(structural, enriched)
	if got.Text != "cleaned" || got.Type != model.QuestionTypeLongAnswer {
		t.Errorf("enrichment not matched through normalization: %+v", got)
	}
}

func TestMergeMetadataPrefersEnrichment(t *testing.T) {
	structural := extract.Metadata{
		Subject:    "Math",
		Grade:      "",
		School:     "Greenwood Primary School",
		TotalMarks: intPtr(40),
	}
	result := enrichmentResult{
		Subject:    "Additional Mathematics", // 结构化嗅探表外的科目
		Grade:      " Secondary 3 ",
		SchoolName: "",
	}

	got := mergeMetadata(structural, result)
	if got.Subject != "Additional Mathematics" {
		t.Errorf("subject = %q, enrichment value must win", got.Subject)
	}
	if got.Grade != "Secondary 3" {
		t.Errorf("grade = %q, want trimmed enrichment value", got.Grade)
	}
	// 增强缺失的字段回落到结构化值
	if got.School != "Greenwood Primary School" {
		t.Errorf("school = %q, want structural fallback", got.School)
	}
	if got.TotalMarks == nil || *got.TotalMarks != 40 {
		t.Errorf("totalMarks = %v, must stay structural", got.TotalMarks)
	}

	empty := mergeMetadata(extract.Metadata{}, enrichmentResult{})
	if empty.Subject != "" || empty.Grade != "" || empty.School != "" {
		t.Errorf("both sides empty must stay empty: %+v", empty)
	}
}

func TestParseQuestionTypeUnknownFallsBack(t *testing.T) {
	withOptions := extract.StructuralQuestion{
		Options: []extract.MCQOption{{Label: "A"}, {Label: "B"}},
	}
	if got := parseQuestionType("essay", withOptions); got != model.QuestionTypeMCQ {
		t.Errorf("parseQuestionType(essay) = %q, want mcq fallback", got)
	}
	if got := parseQuestionType("", extract.StructuralQuestion{}); got != model.QuestionTypeShortAnswer {
		t.Errorf("parseQuestionType(empty) = %q, want short_answer fallback", got)
	}
	if got := parseQuestionType("Fill_Blank", extract.StructuralQuestion{}); got != model.QuestionTypeFillBlank {
		t.Errorf("parseQuestionType(Fill_Blank) = %q, want fill_blank", got)
	}
}
