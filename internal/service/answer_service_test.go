package service

import (
	"exam_tutor_backend/internal/model"
	"testing"
)

func mcqQuestion(expected string) *model.Question {
	marks := 2
	return &model.Question{
		QuestionType:   model.QuestionTypeMCQ,
		ExpectedAnswer: expected,
		Marks:          &marks,
		Options: []model.AnswerOption{
			{UUIDBase: model.UUIDBase{ID: "opt-a"}, OptionLabel: "A", OptionText: "12"},
			{UUIDBase: model.UUIDBase{ID: "opt-b"}, OptionLabel: "B", OptionText: "14"},
		},
	}
}

func TestGradeMCQCorrectSelection(t *testing.T) {
	svc := &AnswerService{}
	sel := "opt-b"
	answer := &model.UserAnswer{SelectedOptionID: &sel}

	svc.gradeMCQ(mcqQuestion("b"), answer)

	if answer.IsCorrect == nil || !*answer.IsCorrect {
		t.Fatal("expected correct (label match is case-insensitive)")
	}
	if answer.Score == nil || *answer.Score != 2 {
		t.Errorf("Score = %v, want full marks 2", answer.Score)
	}
}

func TestGradeMCQWrongSelection(t *testing.T) {
	svc := &AnswerService{}
	sel := "opt-a"
	answer := &model.UserAnswer{SelectedOptionID: &sel}

	svc.gradeMCQ(mcqQuestion("B"), answer)

	if answer.IsCorrect == nil || *answer.IsCorrect {
		t.Fatal("expected incorrect")
	}
	if answer.Score == nil || *answer.Score != 0 {
		t.Errorf("Score = %v, want 0", answer.Score)
	}
}

func TestGradeMCQLeavesUngraded(t *testing.T) {
	svc := &AnswerService{}
	sel := "opt-a"

	tests := []struct {
		name     string
		question *model.Question
		answer   *model.UserAnswer
	}{
		{"无参考答案", mcqQuestion(""), &model.UserAnswer{SelectedOptionID: &sel}},
		{"未选择选项", mcqQuestion("A"), &model.UserAnswer{}},
		{"选项 ID 不存在", mcqQuestion("A"), &model.UserAnswer{SelectedOptionID: strPtr("opt-z")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.gradeMCQ(tt.question, tt.answer)
			if tt.answer.IsCorrect != nil || tt.answer.Score != nil {
				t.Errorf("answer must stay ungraded, got IsCorrect=%v Score=%v",
					tt.answer.IsCorrect, tt.answer.Score)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
