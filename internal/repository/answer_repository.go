package repository

import (
	"errors"
	"exam_tutor_backend/internal/model"

	"gorm.io/gorm"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

// Upsert 同一用户对同一题只保留最新一次作答
func (r *AnswerRepository) Upsert(answer *model.UserAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.UserAnswer
		err := tx.Where("user_id = ? AND question_id = ?", answer.UserID, answer.QuestionID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(answer).Error
		}
		if err != nil {
			return err
		}

		answer.ID = existing.ID
		answer.CreatedAt = existing.CreatedAt
		return tx.Save(answer).Error
	})
}

func (r *AnswerRepository) FindByUserAndQuestion(userID uint, questionID string) (*model.UserAnswer, error) {
	var answer model.UserAnswer
	err := r.DB.Where("user_id = ? AND question_id = ?", userID, questionID).
		First(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// FindByUserAndExam 按题目顺序返回用户在整卷上的作答
func (r *AnswerRepository) FindByUserAndExam(userID uint, examID string) ([]model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := r.DB.
		Joins("JOIN questions ON questions.id = user_answers.question_id").
		Where("user_answers.user_id = ? AND questions.exam_id = ?", userID, examID).
		Order("questions.order_index ASC").
		Find(&answers).Error
	return answers, err
}
