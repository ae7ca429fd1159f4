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

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatService AI 辅导：围绕某道题的流式对话。
// 辅导原则写死在系统提示词里：引导而不代做。
type ChatService struct {
	examRepo  *repository.ExamRepository
	chatRepo  *repository.ChatRepository
	aiService *AIService
	aiConfig  config.AIConfig
}

func NewChatService(
	examRepo *repository.ExamRepository,
	chatRepo *repository.ChatRepository,
	aiService *AIService,
	aiCfg config.AIConfig,
) *ChatService {
	return &ChatService{
		examRepo:  examRepo,
		chatRepo:  chatRepo,
		aiService: aiService,
		aiConfig:  aiCfg,
	}
}

const tutorSystemPromptTemplate = `You are a patient tutor helping a student work through one exam question. The question is:

%s

%s

Tutoring rules:
- Guide with hints and leading questions. Never hand over the final answer outright unless the student has made a genuine attempt.
- When the student answers correctly, confirm it and briefly reinforce why it is correct.
- When the student is wrong, point at the specific misstep instead of re-explaining everything.
- Keep replies short, plain and encouraging. One idea at a time.`

// Tutor 一轮辅导对话。回复通过 onDelta 流式推送，结束后整轮入库。
func (s *ChatService) Tutor(ctx context.Context, userID uint, examID, questionNumber, userMessage string, onDelta func(delta string) error) error {
	exam, err := s.examRepo.FindByID(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrExamNotFound
	}
	if err != nil {
		return err
	}
	if exam.UserID != userID {
		return util.ErrPermissionDenied
	}
	if exam.Status != model.ExamStatusCompleted {
		return util.ErrExamNotReady
	}

	question, err := s.examRepo.FindQuestionByNumber(examID, questionNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrQuestionNotFound
	}
	if err != nil {
		return err
	}

	history, err := s.chatRepo.History(ctx, userID, examID, questionNumber)
	if err != nil {
		logger.Log.Warn("读取对话历史失败，按空历史继续", zap.Error(err))
		history = nil
	}

	messages := s.buildMessages(question, history, userMessage)

	reply, streamErr := s.aiService.ChatStream(ctx, s.aiConfig.ChatModel, messages, onDelta)

	// 即便流中断，也把已产生的内容存下来，保住对话连续性
	if err := s.chatRepo.Append(ctx, &model.ChatMessage{
		ExamID:         examID,
		QuestionNumber: questionNumber,
		UserID:         userID,
		Role:           model.ChatRoleUser,
		Content:        userMessage,
	}); err != nil {
		logger.Log.Warn("保存用户消息失败", zap.Error(err))
	}
	if reply != "" {
		if err := s.chatRepo.Append(ctx, &model.ChatMessage{
			ExamID:         examID,
			QuestionNumber: questionNumber,
			UserID:         userID,
			Role:           model.ChatRoleAssistant,
			Content:        reply,
			AIModel:        s.aiConfig.ChatModel,
		}); err != nil {
			logger.Log.Warn("保存助手回复失败", zap.Error(err))
		}
	}
	return streamErr
}

// History 某题的历史对话
func (s *ChatService) History(ctx context.Context, userID uint, examID, questionNumber string) ([]model.ChatMessage, error) {
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
	return s.chatRepo.History(ctx, userID, examID, questionNumber)
}

func (s *ChatService) buildMessages(question *model.Question, history []model.ChatMessage, userMessage string) []openai.ChatCompletionMessage {
	var answerContext string
	if question.ExpectedAnswer != "" {
		answerContext = fmt.Sprintf("Reference answer (never reveal it verbatim): %s", question.ExpectedAnswer)
	}

	questionText := question.QuestionText
	if len(question.Options) > 0 {
		var opts []string
		for _, opt := range question.Options {
			opts = append(opts, fmt.Sprintf("%s. %s", opt.OptionLabel, opt.OptionText))
		}
		questionText = questionText + "\n\nOptions:\n" + strings.Join(opts, "\n")
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf(tutorSystemPromptTemplate, questionText, answerContext),
		},
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == model.ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})
}
