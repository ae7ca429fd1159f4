package service

import (
	"context"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/internal/repository"
	"exam_tutor_backend/pkg/logger"
	"exam_tutor_backend/pkg/monitoring"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ProcessorService 整卷处理管线：OCR → 结构化解析 → 语义增强 → 答案页 → 图片 → 落库。
// 各阶段顺序执行；OCR 失败终止整卷，其余阶段失败尽量降级。
type ProcessorService struct {
	examRepo          *repository.ExamRepository
	storageService    *StorageService
	ocrService        *OcrService
	enrichmentService *EnrichmentService
	answerKeyService  *AnswerKeyService
	imageService      *ImageService
}

func NewProcessorService(
	examRepo *repository.ExamRepository,
	storageService *StorageService,
	ocrService *OcrService,
	enrichmentService *EnrichmentService,
	answerKeyService *AnswerKeyService,
	imageService *ImageService,
) *ProcessorService {
	return &ProcessorService{
		examRepo:          examRepo,
		storageService:    storageService,
		ocrService:        ocrService,
		enrichmentService: enrichmentService,
		answerKeyService:  answerKeyService,
		imageService:      imageService,
	}
}

// Launch 异步启动处理。管线运行到底，不随请求取消；
// 客户端通过状态轮询接口观察进度。
func (s *ProcessorService) Launch(examID string) {
	go func() {
		if err := s.Process(context.Background(), examID); err != nil {
			logger.Log.Error("试卷处理失败",
				zap.String("examId", examID),
				zap.Error(err))
		}
	}()
}

// Process 同步执行完整管线
func (s *ProcessorService) Process(ctx context.Context, examID string) error {
	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		return fmt.Errorf("load exam: %w", err)
	}

	if err := s.examRepo.UpdateStatus(examID, model.ExamStatusProcessing, ""); err != nil {
		return err
	}

	if err := s.run(ctx, exam); err != nil {
		monitoring.ExamProcessingCounter.WithLabelValues("failed").Inc()
		if updateErr := s.examRepo.UpdateStatus(examID, model.ExamStatusFailed, err.Error()); updateErr != nil {
			logger.Log.Error("写入失败状态出错",
				zap.String("examId", examID),
				zap.Error(updateErr))
		}
		return err
	}

	monitoring.ExamProcessingCounter.WithLabelValues("completed").Inc()
	logger.Log.Info("试卷处理完成", zap.String("examId", examID))
	return nil
}

func (s *ProcessorService) run(ctx context.Context, exam *model.Exam) error {
	// OCR 需要文档可公网访问，用预签名地址喂给 Mistral
	documentURL, err := s.storageService.PresignedGetURL(ctx, exam.PdfKey, 30*time.Minute)
	if err != nil {
		return fmt.Errorf("presign document: %w", err)
	}

	start := time.Now()
	ocrResult, err := s.ocrService.Process(ctx, documentURL)
	monitoring.ObserveStage("ocr", start)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if err := s.examRepo.SaveRawOcr(exam.ID, ocrResult.RawJSON); err != nil {
		logger.Log.Warn("原始 OCR 结果落库失败", zap.String("examId", exam.ID), zap.Error(err))
	}

	start = time.Now()
	structural := extract.ParseStructure(ocrResult.Pages)
	monitoring.ObserveStage("structural", start)
	logger.Log.Info("结构化解析完成",
		zap.String("examId", exam.ID),
		zap.Int("questions", len(structural.Questions)),
		zap.Int("images", len(structural.ImagePositions)))

	start = time.Now()
	extracted := s.enrichmentService.EnrichQuestions(ctx, &structural)
	monitoring.ObserveStage("enrichment", start)

	start = time.Now()
	answerKey := s.answerKeyService.Extract(ctx, ocrResult.Pages)
	monitoring.ObserveStage("answer_key", start)

	start = time.Now()
	classified := s.imageService.ProcessImages(ctx, exam.ID, ocrResult.Pages, instructionImageIDs(extracted))
	monitoring.ObserveStage("images", start)

	start = time.Now()
	input := buildExtractionInput(extracted, answerKey, classified)
	err = s.examRepo.SaveExtraction(exam.ID, input)
	monitoring.ObserveStage("persist", start)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// instructionImageIDs 节首说明里引用的图片：这些是说明配图，按内容图直通处理
func instructionImageIDs(extracted *ExtractedExam) map[string]bool {
	ids := make(map[string]bool)
	for _, q := range extracted.Questions {
		for _, id := range extract.ImageRefsIn(q.SectionInstructions) {
			ids[id] = true
		}
	}
	return ids
}

// buildExtractionInput 把管线各阶段的产物拼成一次性落库的输入
func buildExtractionInput(extracted *ExtractedExam, answerKey *AnswerKeyResult, classified []ClassifiedImage) *repository.ExtractionInput {
	input := &repository.ExtractionInput{
		Subject:      extracted.Metadata.Subject,
		Grade:        extracted.Metadata.Grade,
		School:       extracted.Metadata.School,
		TotalMarks:   extracted.Metadata.TotalMarks,
		HasAnswerKey: answerKey.HasAnswerKey,
		Sections:     buildSections(extracted.Questions),
	}
	if answerKey.HasAnswerKey {
		input.AnswerKeyConfidence = answerKey.Confidence
	}

	claimed := make(map[string]bool)
	for _, q := range extracted.Questions {
		for _, id := range q.ImageIDs {
			claimed[id] = true
		}
	}

	for _, img := range classified {
		if img.StorageKey == "" {
			continue
		}
		imageType := "exam_content"
		if claimed[img.Image.ID] {
			imageType = "question_diagram"
		}
		input.Images = append(input.Images, repository.ImageInput{
			SourceID:   img.Image.ID,
			StorageKey: img.StorageKey,
			ImageType:  imageType,
		})
	}

	for _, entry := range answerKey.Entries {
		input.AnswerKey = append(input.AnswerKey, repository.AnswerKeyInput{
			QuestionNumber: entry.QuestionNumber,
			Answer:         entry.Answer,
			AnswerType:     entry.AnswerType,
		})
	}
	return input
}

// buildSections 按题目出现顺序分节。未落入任何节的题目归入匿名默认节。
// 节说明取该节题目增强结果里第一个非空的 sectionInstructions。
func buildSections(questions []ExtractedQuestion) []repository.SectionInput {
	var sections []repository.SectionInput
	indexByName := make(map[string]int)

	for _, q := range questions {
		idx, ok := indexByName[q.Section]
		if !ok {
			sections = append(sections, repository.SectionInput{Name: q.Section})
			idx = len(sections) - 1
			indexByName[q.Section] = idx
		}
		if sections[idx].Instructions == "" && q.SectionInstructions != "" {
			sections[idx].Instructions = q.SectionInstructions
		}
		sections[idx].Questions = append(sections[idx].Questions, repository.QuestionInput{
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			Type:           q.Type,
			PageNumber:     q.PageNumber,
			Marks:          q.Marks,
			ExpectedAnswer: q.ExpectedAnswer,
			Options:        buildOptions(q.Options),
			ImageIDs:       q.ImageIDs,
		})
	}
	return sections
}

func buildOptions(options []ExtractedOption) []repository.OptionInput {
	result := make([]repository.OptionInput, 0, len(options))
	for _, opt := range options {
		result = append(result, repository.OptionInput{Label: opt.Label, Text: opt.Text})
	}
	return result
}
