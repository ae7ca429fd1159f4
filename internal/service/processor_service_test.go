package service

import (
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/model"
	"testing"
)

func TestBuildSectionsGroupsInOrder(t *testing.T) {
	questions := []ExtractedQuestion{
		{QuestionNumber: "1", Section: "Section A", SectionInstructions: "Answer all questions."},
		{QuestionNumber: "2", Section: "Section A", SectionInstructions: "ignored, first wins"},
		{QuestionNumber: "3", Section: "Section B"},
		{QuestionNumber: "4", Section: "Section B", SectionInstructions: "Write in full sentences."},
	}

	sections := buildSections(questions)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	if sections[0].Name != "Section A" || len(sections[0].Questions) != 2 {
		t.Errorf("section A = %q with %d questions", sections[0].Name, len(sections[0].Questions))
	}
	if sections[0].Instructions != "Answer all questions." {
		t.Errorf("section A instructions = %q, first non-empty must win", sections[0].Instructions)
	}
	if sections[1].Instructions != "Write in full sentences." {
		t.Errorf("section B instructions = %q", sections[1].Instructions)
	}
	if sections[1].Questions[0].QuestionNumber != "3" {
		t.Errorf("question order lost: %+v", sections[1].Questions)
	}
}

// 没有检出任何分区标题时，所有题目归入一个匿名默认分区
func TestBuildSectionsDefaultAnonymousSection(t *testing.T) {
	questions := []ExtractedQuestion{
		{QuestionNumber: "1"},
		{QuestionNumber: "2"},
	}

	sections := buildSections(questions)
	if len(sections) != 1 {
		t.Fatalf("expected single default section, got %d", len(sections))
	}
	if sections[0].Name != "" {
		t.Errorf("default section name = %q, want empty", sections[0].Name)
	}
	if len(sections[0].Questions) != 2 {
		t.Errorf("default section has %d questions", len(sections[0].Questions))
	}
}

func TestBuildExtractionInput(t *testing.T) {
	totalMarks := 40
	extracted := &ExtractedExam{
		Metadata: extract.Metadata{
			Subject:    "Math",
			Grade:      "Primary 4",
			School:     "Greenwood Primary School",
			TotalMarks: &totalMarks,
		},
		Questions: []ExtractedQuestion{
			{QuestionNumber: "1", Type: model.QuestionTypeMCQ, ImageIDs: []string{"img-0.jpeg"}},
			{QuestionNumber: "2", Type: model.QuestionTypeShortAnswer},
		},
	}
	answerKey := &AnswerKeyResult{
		HasAnswerKey: true,
		Confidence:   "high",
		Entries: []AnswerKeyEntry{
			{QuestionNumber: "1", Answer: "B", AnswerType: AnswerTypeMCQOption},
		},
	}
	classified := []ClassifiedImage{
		{
			Image:      extract.Image{ID: "img-0.jpeg"},
			StorageKey: "images/exam-1/img-0.png",
		},
		{
			Image:      extract.Image{ID: "img-1.jpeg"},
			StorageKey: "images/exam-1/img-1.png",
		},
		{
			// 未入库（行政类）的图片不出现在结果里
			Image: extract.Image{ID: "img-2.jpeg"},
		},
	}

	input := buildExtractionInput(extracted, answerKey, classified)

	if input.Subject != "Math" || input.Grade != "Primary 4" {
		t.Errorf("metadata lost: %+v", input)
	}
	if input.TotalMarks == nil || *input.TotalMarks != 40 {
		t.Errorf("totalMarks = %v", input.TotalMarks)
	}
	if !input.HasAnswerKey || input.AnswerKeyConfidence != "high" {
		t.Errorf("answer key flags: %+v", input)
	}
	if len(input.AnswerKey) != 1 || input.AnswerKey[0].Answer != "B" {
		t.Errorf("answer key entries: %+v", input.AnswerKey)
	}
	if input.AnswerKey[0].AnswerType != AnswerTypeMCQOption {
		t.Errorf("answer type = %q, want %q", input.AnswerKey[0].AnswerType, AnswerTypeMCQOption)
	}

	if len(input.Images) != 2 {
		t.Fatalf("expected 2 stored images, got %d", len(input.Images))
	}
	if input.Images[0].ImageType != "question_diagram" {
		t.Errorf("claimed image type = %q, want question_diagram", input.Images[0].ImageType)
	}
	if input.Images[1].ImageType != "exam_content" {
		t.Errorf("unclaimed image type = %q, want exam_content", input.Images[1].ImageType)
	}
}

func TestBuildExtractionInputNoAnswerKey(t *testing.T) {
	input := buildExtractionInput(&ExtractedExam{}, &AnswerKeyResult{}, nil)
	if input.HasAnswerKey || input.AnswerKeyConfidence != "" || len(input.AnswerKey) != 0 {
		t.Errorf("empty answer key must stay empty: %+v", input)
	}
}

func TestInstructionImageIDs(t *testing.T) {
	extracted := &ExtractedExam{
		Questions: []ExtractedQuestion{
			{SectionInstructions: "Use the map ![map](img-5.jpeg) for questions 1 to 3."},
			{SectionInstructions: ""},
		},
	}
	ids := instructionImageIDs(extracted)
	if !ids["img-5.jpeg"] || len(ids) != 1 {
		t.Errorf("instructionImageIDs = %v", ids)
	}
}
