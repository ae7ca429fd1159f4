package service

import (
	"context"
	"errors"
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

const presignedImageTTL = 1 * time.Hour

// ExamService 试卷查询与删除
type ExamService struct {
	examRepo       *repository.ExamRepository
	storageService *StorageService
}

func NewExamService(examRepo *repository.ExamRepository, storageService *StorageService) *ExamService {
	return &ExamService{examRepo: examRepo, storageService: storageService}
}

// ExamSummary 列表项
type ExamSummary struct {
	ID           string           `json:"id"`
	Filename     string           `json:"filename"`
	Subject      string           `json:"subject,omitempty"`
	Grade        string           `json:"grade,omitempty"`
	Status       model.ExamStatus `json:"status"`
	HasAnswerKey bool             `json:"hasAnswerKey"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// ExamStatusInfo 轮询用的轻量状态
type ExamStatusInfo struct {
	ID           string           `json:"id"`
	Status       model.ExamStatus `json:"status"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

// ExamDetail 完整试卷视图，图片均已换成限时访问地址
type ExamDetail struct {
	ID                  string           `json:"id"`
	Filename            string           `json:"filename"`
	Subject             string           `json:"subject,omitempty"`
	Grade               string           `json:"grade,omitempty"`
	SchoolName          string           `json:"schoolName,omitempty"`
	TotalMarks          *int             `json:"totalMarks,omitempty"`
	Status              model.ExamStatus `json:"status"`
	HasAnswerKey        bool             `json:"hasAnswerKey"`
	AnswerKeyConfidence string           `json:"answerKeyConfidence,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	Sections            []SectionDetail  `json:"sections"`
}

type SectionDetail struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions,omitempty"`
	Questions    []QuestionDetail `json:"questions"`
}

type QuestionDetail struct {
	ID             string             `json:"id"`
	QuestionNumber string             `json:"questionNumber"`
	QuestionText   string             `json:"questionText"`
	QuestionType   model.QuestionType `json:"questionType"`
	PageNumber     int                `json:"pageNumber"`
	Marks          *int               `json:"marks,omitempty"`
	HasAnswer      bool               `json:"hasAnswer"`
	Options        []OptionDetail     `json:"options,omitempty"`
	ImageURLs      []string           `json:"imageUrls,omitempty"`
}

type OptionDetail struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

func (s *ExamService) ListByUser(userID uint) ([]ExamSummary, error) {
	exams, err := s.examRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]ExamSummary, 0, len(exams))
	for _, exam := range exams {
		summaries = append(summaries, ExamSummary{
			ID:           exam.ID,
			Filename:     exam.Filename,
			Subject:      exam.Subject,
			Grade:        exam.Grade,
			Status:       exam.Status,
			HasAnswerKey: exam.HasAnswerKey,
			CreatedAt:    exam.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *ExamService) GetStatus(examID string, userID uint) (*ExamStatusInfo, error) {
	exam, err := s.findOwned(examID, userID)
	if err != nil {
		return nil, err
	}
	return &ExamStatusInfo{
		ID:           exam.ID,
		Status:       exam.Status,
		ErrorMessage: exam.ErrorMessage,
	}, nil
}

// GetDetail 返回整卷结构。图片地址为限时预签名；
// 单张图片签名失败只记日志并跳过，不影响其余内容。
func (s *ExamService) GetDetail(ctx context.Context, examID string, userID uint) (*ExamDetail, error) {
	exam, err := s.examRepo.FindByIDWithDetail(examID)
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

	urlBySourceID := s.presignImages(ctx, exam)

	detail := &ExamDetail{
		ID:                  exam.ID,
		Filename:            exam.Filename,
		Subject:             exam.Subject,
		Grade:               exam.Grade,
		SchoolName:          exam.SchoolName,
		TotalMarks:          exam.TotalMarks,
		Status:              exam.Status,
		HasAnswerKey:        exam.HasAnswerKey,
		AnswerKeyConfidence: exam.AnswerKeyConfidence,
		CreatedAt:           exam.CreatedAt,
		Sections:            []SectionDetail{},
	}

	for _, section := range exam.Sections {
		sectionDetail := SectionDetail{
			ID:           section.ID,
			Name:         section.Name,
			Instructions: rewriteImageRefs(section.Instructions, urlBySourceID),
			Questions:    []QuestionDetail{},
		}
		for _, question := range section.Questions {
			sectionDetail.Questions = append(sectionDetail.Questions, s.buildQuestionDetail(question, urlBySourceID))
		}
		detail.Sections = append(detail.Sections, sectionDetail)
	}
	return detail, nil
}

func (s *ExamService) buildQuestionDetail(question model.Question, urlBySourceID map[string]string) QuestionDetail {
	qd := QuestionDetail{
		ID:             question.ID,
		QuestionNumber: question.QuestionNumber,
		QuestionText:   rewriteImageRefs(question.QuestionText, urlBySourceID),
		QuestionType:   question.QuestionType,
		PageNumber:     question.PageNumber,
		Marks:          question.Marks,
		HasAnswer:      question.ExpectedAnswer != "",
	}
	for _, opt := range question.Options {
		qd.Options = append(qd.Options, OptionDetail{ID: opt.ID, Label: opt.OptionLabel, Text: opt.OptionText})
	}
	for _, img := range question.Images {
		if url, ok := urlBySourceID[img.SourceID]; ok {
			qd.ImageURLs = append(qd.ImageURLs, url)
		}
	}
	return qd
}

// presignImages 为试卷全部图片预签名，失败的跳过并告警
func (s *ExamService) presignImages(ctx context.Context, exam *model.Exam) map[string]string {
	urls := make(map[string]string, len(exam.Images))
	for _, img := range exam.Images {
		url, err := s.storageService.PresignedGetURL(ctx, img.StorageKey, presignedImageTTL)
		if err != nil {
			logger.Log.Warn("图片预签名失败，跳过",
				zap.String("examId", exam.ID),
				zap.String("storageKey", img.StorageKey),
				zap.Error(err))
			continue
		}
		urls[img.SourceID] = url
	}
	return urls
}

// rewriteImageRefs 把文本里的 markdown 图片引用换成可访问地址；
// 没有对应入库图片的引用原样保留
func rewriteImageRefs(text string, urlBySourceID map[string]string) string {
	if text == "" || len(urlBySourceID) == 0 {
		return text
	}
	for sourceID, url := range urlBySourceID {
		ref := fmt.Sprintf("(%s)", sourceID)
		if strings.Contains(text, ref) {
			text = strings.ReplaceAll(text, ref, fmt.Sprintf("(%s)", url))
		}
	}
	return text
}

// Delete 删除试卷及其对象存储里的 PDF 和图片。
// 存储清理失败不阻塞删除，孤儿对象由后台对账任务兜底。
func (s *ExamService) Delete(ctx context.Context, examID string, userID uint) error {
	exam, err := s.examRepo.FindByIDWithDetail(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrExamNotFound
	}
	if err != nil {
		return err
	}
	if exam.UserID != userID {
		return util.ErrPermissionDenied
	}

	if err := s.examRepo.Delete(exam); err != nil {
		return err
	}

	if err := s.storageService.Delete(ctx, exam.PdfKey); err != nil {
		logger.Log.Warn("删除 PDF 失败", zap.String("key", exam.PdfKey), zap.Error(err))
	}
	for _, img := range exam.Images {
		if err := s.storageService.Delete(ctx, img.StorageKey); err != nil {
			logger.Log.Warn("删除图片失败", zap.String("key", img.StorageKey), zap.Error(err))
		}
	}
	return nil
}

func (s *ExamService) findOwned(examID string, userID uint) (*model.Exam, error) {
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
	return exam, nil
}
