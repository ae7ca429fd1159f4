package service

import (
	"context"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AnswerKeyEntry 答案页里的一条"题号 → 答案"记录。
// AnswerType 区分选择题选项标签（mcq_option）和解答文本（text）。
type AnswerKeyEntry struct {
	QuestionNumber string `json:"questionNumber"`
	Answer         string `json:"answer"`
	AnswerType     string `json:"answerType"`
}

const (
	AnswerTypeMCQOption = "mcq_option"
	AnswerTypeText      = "text"
)

// AnswerKeyResult 答案页提取结果。没有答案页时 Entries 为空。
type AnswerKeyResult struct {
	HasAnswerKey bool
	Confidence   string
	Entries      []AnswerKeyEntry
}

// AnswerKeyService 答案页两段式提取：先检测、后抽取。
// 任何一步失败都降级为"无答案页"，绝不中断整卷处理。
type AnswerKeyService struct {
	aiService *AIService
	aiConfig  config.AIConfig
	window    int
}

func NewAnswerKeyService(aiService *AIService, aiCfg config.AIConfig, pipelineCfg config.PipelineConfig) *AnswerKeyService {
	return &AnswerKeyService{
		aiService: aiService,
		aiConfig:  aiCfg,
		window:    pipelineCfg.AnswerKeyPageWindow,
	}
}

type answerKeyDetection struct {
	HasAnswerKey bool   `json:"hasAnswerKey"`
	Confidence   string `json:"confidence"`
	StartPage    int    `json:"startPage"`
}

type answerKeyExtraction struct {
	Entries []AnswerKeyEntry `json:"entries"`
}

const answerKeyDetectSystemPrompt = `You are inspecting the final pages of an exam paper. Decide whether they contain an answer key (marking scheme, memo, solutions) for the questions in the paper.

Return JSON: {"hasAnswerKey": boolean, "confidence": "low"|"medium"|"high", "startPage": number}

startPage is the page number (as printed in the page markers) where the answer key begins, or 0 when there is none. Lists of formulas, instructions or blank pages are NOT an answer key.`

const answerKeyExtractSystemPrompt = `You are reading the answer key pages of an exam paper. Extract every "question number to answer" mapping you can find.

Return JSON: {"entries": [{"questionNumber": string, "answer": string, "answerType": "mcq_option"|"text"}]}

Rules:
- questionNumber exactly as printed (e.g. "1", "2a", "Q3").
- answer: for multiple choice the option label (e.g. "B") with answerType "mcq_option"; otherwise the full model answer text with answerType "text".
- Only include mappings that are actually printed. Never guess.`

// Extract 在末尾页窗口内检测并抽取答案页
func (s *AnswerKeyService) Extract(ctx context.Context, pages []extract.Page) *AnswerKeyResult {
	empty := &AnswerKeyResult{}
	if len(pages) == 0 {
		return empty
	}

	windowPages := trailingPages(pages, s.window)
	windowText := joinPages(windowPages)

	var detection answerKeyDetection
	ok, err := s.aiService.GenerateObject(ctx, s.aiConfig.AnswerKeyModel, answerKeyDetectSystemPrompt, windowText, &detection)
	if err != nil {
		logger.Log.Warn("答案页检测失败，按无答案页处理", zap.Error(err))
		return empty
	}
	if !ok || !detection.HasAnswerKey {
		return empty
	}

	// 抽取只看检测认定的起始页及之后，避免把题干当答案
	extractPages := windowPages
	if detection.StartPage > 0 {
		var filtered []extract.Page
		for _, p := range windowPages {
			if p.PageNumber >= detection.StartPage {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			extractPages = filtered
		}
	}

	var extraction answerKeyExtraction
	ok, err = s.aiService.GenerateObject(ctx, s.aiConfig.AnswerKeyModel, answerKeyExtractSystemPrompt, joinPages(extractPages), &extraction)
	if err != nil {
		logger.Log.Warn("答案抽取失败，按无答案页处理", zap.Error(err))
		return empty
	}
	if !ok || len(extraction.Entries) == 0 {
		return empty
	}

	return &AnswerKeyResult{
		HasAnswerKey: true,
		Confidence:   normalizeConfidence(detection.Confidence),
		Entries:      extraction.Entries,
	}
}

func trailingPages(pages []extract.Page, window int) []extract.Page {
	if window <= 0 || window >= len(pages) {
		return pages
	}
	return pages[len(pages)-window:]
}

func joinPages(pages []extract.Page) string {
	var b strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&b, "%s\n\n%s\n\n", extract.PageMarker(p.PageNumber), p.Markdown)
	}
	return b.String()
}

func normalizeConfidence(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return string(extract.ConfidenceHigh)
	case "medium":
		return string(extract.ConfidenceMedium)
	default:
		return string(extract.ConfidenceLow)
	}
}
