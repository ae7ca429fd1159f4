package model

import "time"

// UserAnswer 学生作答记录，按 (UserID, QuestionID) 唯一，提交即覆盖
// swagger:model UserAnswer
type UserAnswer struct {
	UUIDBase
	UserID           uint      `gorm:"uniqueIndex:idx_user_question;type:bigint unsigned;not null" json:"userId"`
	QuestionID       string    `gorm:"uniqueIndex:idx_user_question;type:varchar(36);not null" json:"questionId"`
	ExamID           string    `gorm:"index;type:varchar(36);not null" json:"examId"`
	AnswerText       string    `gorm:"type:text" json:"answerText"`
	SelectedOptionID *string   `gorm:"type:varchar(36)" json:"selectedOptionId"`
	IsCorrect        *bool     `json:"isCorrect"`
	Score            *float64  `json:"score"`
	Feedback         string    `gorm:"type:text" json:"feedback,omitempty"`
	GradedModel      string    `gorm:"size:50" json:"gradedModel,omitempty"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}
