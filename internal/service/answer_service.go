package service

import (
	"context"
	"errors"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/internal/repository"
	"exam_tutor_backend/internal/util"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerService 作答与批改。
// 选择题本地比对参考答案；主观题交给大模型评分。
type AnswerService struct {
	examRepo   *repository.ExamRepository
	answerRepo *repository.AnswerRepository
	aiService  *AIService
	aiConfig   config.AIConfig
}

func NewAnswerService(
	examRepo *repository.ExamRepository,
	answerRepo *repository.AnswerRepository,
	aiService *AIService,
	aiCfg config.AIConfig,
) *AnswerService {
	return &AnswerService{
		examRepo:   examRepo,
		answerRepo: answerRepo,
		aiService:  aiService,
		aiConfig:   aiCfg,
	}
}

// SubmitAnswerRequest 一次作答
type SubmitAnswerRequest struct {
	AnswerText       string  `json:"answerText"`
	SelectedOptionID *string `json:"selectedOptionId"`
}

type llmGrade struct {
	IsCorrect bool    `json:"isCorrect"`
	Score     float64 `json:"score"`
	Feedback  string  `json:"feedback"`
}

const gradingSystemPrompt = `You are grading a student's answer to an exam question. You receive the question, the maximum marks, the reference answer (may be empty) and the student's answer.

Return JSON: {"isCorrect": boolean, "score": number, "feedback": string}

Rules:
- score is between 0 and the maximum marks (use 1 as maximum when no marks are given). Partial credit is allowed.
- isCorrect is true only when the answer would earn full or near-full marks.
- feedback: 2-3 sentences addressed to the student, pointing out what is right and what is missing. Do not reveal the full reference answer verbatim.
- When the reference answer is empty, grade on correctness of reasoning and factual accuracy alone.`

// SubmitAnswer 保存作答并批改。批改失败不丢作答，留作未评分。
func (s *AnswerService) SubmitAnswer(ctx context.Context, userID uint, examID, questionID string, req SubmitAnswerRequest) (*model.UserAnswer, error) {
	exam, err := s.examRepo.FindByID(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	if exam.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if exam.Status != model.ExamStatusCompleted {
		return nil, util.ErrExamNotReady
	}

	question, err := s.examRepo.FindQuestion(examID, questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}

	answer := &model.UserAnswer{
		UserID:           userID,
		QuestionID:       questionID,
		ExamID:           examID,
		AnswerText:       req.AnswerText,
		SelectedOptionID: req.SelectedOptionID,
		SubmittedAt:      time.Now(),
	}

	if question.QuestionType == model.QuestionTypeMCQ {
		s.gradeMCQ(question, answer)
	} else {
		s.gradeWithModel(ctx, question, answer)
	}

	if err := s.answerRepo.Upsert(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// GradeExam 重新批改用户在整卷上的全部作答。
// 逐题串行批改；单题批改失败只记日志，不影响其余题目。
func (s *AnswerService) GradeExam(ctx context.Context, userID uint, examID string) ([]model.UserAnswer, error) {
	exam, err := s.examRepo.FindByID(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	if exam.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if exam.Status != model.ExamStatusCompleted {
		return nil, util.ErrExamNotReady
	}

	answers, err := s.answerRepo.FindByUserAndExam(userID, examID)
	if err != nil {
		return nil, err
	}

	for i := range answers {
		answer := &answers[i]
		question, err := s.examRepo.FindQuestion(examID, answer.QuestionID)
		if err != nil {
			logger.Log.Warn("批改时找不到题目，跳过",
				zap.String("questionId", answer.QuestionID),
				zap.Error(err))
			continue
		}
		if question.QuestionType == model.QuestionTypeMCQ {
			s.gradeMCQ(question, answer)
		} else {
			s.gradeWithModel(ctx, question, answer)
		}
		if err := s.answerRepo.Upsert(answer); err != nil {
			logger.Log.Warn("保存批改结果失败",
				zap.String("questionId", answer.QuestionID),
				zap.Error(err))
		}
	}
	return answers, nil
}

// ListAnswers 用户在整卷上的作答
func (s *AnswerService) ListAnswers(userID uint, examID string) ([]model.UserAnswer, error) {
	exam, err := s.examRepo.FindByID(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	if exam.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return s.answerRepo.FindByUserAndExam(userID, examID)
}

// gradeMCQ 本地比对：选项标签与参考答案一致即正确。无参考答案时不评分。
func (s *AnswerService) gradeMCQ(question *model.Question, answer *model.UserAnswer) {
	if question.ExpectedAnswer == "" || answer.SelectedOptionID == nil {
		return
	}

	var selectedLabel string
	for _, opt := range question.Options {
		if opt.ID == *answer.SelectedOptionID {
			selectedLabel = opt.OptionLabel
			break
		}
	}
	if selectedLabel == "" {
		return
	}

	correct := strings.EqualFold(strings.TrimSpace(selectedLabel), strings.TrimSpace(question.ExpectedAnswer))
	answer.IsCorrect = &correct

	maxScore := 1.0
	if question.Marks != nil {
		maxScore = float64(*question.Marks)
	}
	score := 0.0
	if correct {
		score = maxScore
	}
	answer.Score = &score
}

// gradeWithModel 主观题批改。简答/填空用抽取模型，长答案换更强的模型。
func (s *AnswerService) gradeWithModel(ctx context.Context, question *model.Question, answer *model.UserAnswer) {
	if strings.TrimSpace(answer.AnswerText) == "" {
		return
	}

	gradeModel := s.aiConfig.ExtractionModel
	if question.QuestionType == model.QuestionTypeLongAnswer {
		gradeModel = s.aiConfig.AnswerKeyModel
	}

	maxMarks := 1
	if question.Marks != nil {
		maxMarks = *question.Marks
	}
	prompt := fmt.Sprintf("Question: %s\n\nMaximum marks: %d\n\nReference answer: %s\n\nStudent answer: %s",
		question.QuestionText, maxMarks, question.ExpectedAnswer, answer.AnswerText)

	var grade llmGrade
	ok, err := s.aiService.GenerateObject(ctx, gradeModel, gradingSystemPrompt, prompt, &grade)
	if err != nil || !ok {
		logger.Log.Warn("批改调用失败，作答保留为未评分",
			zap.String("questionId", question.ID),
			zap.Error(err))
		return
	}

	if grade.Score < 0 {
		grade.Score = 0
	}
	if grade.Score > float64(maxMarks) {
		grade.Score = float64(maxMarks)
	}

	answer.IsCorrect = &grade.IsCorrect
	answer.Score = &grade.Score
	answer.Feedback = grade.Feedback
	answer.GradedModel = gradeModel
}
