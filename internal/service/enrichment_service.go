package service

import (
	"context"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ExtractedOption 合并后的选择题选项
type ExtractedOption struct {
	Label string
	Text  string
}

// ExtractedQuestion 结构化解析与语义增强合并后的最终题目。
// 位置事实（题号、页码、分值、所属节）以结构化解析为准，
// 语义事实（净化文本、题型、参考答案、确认图片）以大模型输出为准。
type ExtractedQuestion struct {
	QuestionNumber      string
	Text                string
	Type                model.QuestionType
	PageNumber          int
	Marks               *int
	Section             string
	SectionInstructions string
	ExpectedAnswer      string
	Options             []ExtractedOption
	ImageIDs            []string
	OrderIndex          int
}

// ExtractedExam 整卷提取结果
type ExtractedExam struct {
	Metadata  extract.Metadata
	Questions []ExtractedQuestion
}

// EnrichmentService 语义增强：把结构化骨架和全文交给大模型做净化与补全
type EnrichmentService struct {
	aiService *AIService
	config    config.AIConfig
}

func NewEnrichmentService(aiService *AIService, cfg config.AIConfig) *EnrichmentService {
	return &EnrichmentService{aiService: aiService, config: cfg}
}

// 模型输出 schema
type enrichmentResult struct {
	Subject    string             `json:"subject"`
	Grade      string             `json:"grade"`
	SchoolName string             `json:"schoolName"`
	Questions  []enrichedQuestion `json:"questions"`
}

type enrichedQuestion struct {
	QuestionNumber      string           `json:"questionNumber"`
	QuestionText        string           `json:"questionText"`
	QuestionType        string           `json:"questionType"`
	ExpectedAnswer      string           `json:"expectedAnswer"`
	Options             []enrichedOption `json:"options"`
	ConfirmedImageIds   []string         `json:"confirmedImageIds"`
	SectionInstructions string           `json:"sectionInstructions"`
}

type enrichedOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

const enrichmentSystemPrompt = `You are an exam paper analyst. You receive the full OCR text of an exam paper plus a structural skeleton of detected questions. For each detected question, return a cleaned version.

Return JSON: {"subject": string, "grade": string, "schoolName": string, "questions": [{"questionNumber": string, "questionText": string, "questionType": "mcq"|"fill_blank"|"short_answer"|"long_answer", "expectedAnswer": string, "options": [{"label": string, "text": string}], "confirmedImageIds": [string], "sectionInstructions": string}]}

Rules:
- subject/grade/schoolName: the paper's cover metadata as printed (e.g. "Math", "Primary 4", "Greenwood Primary School"); empty string when the paper does not state it.
- questionText: the cleaned question statement, without marks annotations, page markers, embedded image references or option lines.
- questionType: "mcq" only when options are part of the question; "fill_blank" for blank-completion; "long_answer" for essay/extended response; otherwise "short_answer".
- expectedAnswer: the correct answer if it is determinable from the paper itself; for mcq use the option label (e.g. "B"); empty string when unknown.
- options: only for mcq, in printed order.
- confirmedImageIds: ids of OCR images that belong to this question's content, chosen from that question's nearbyImages list in the skeleton. Do not include decorative images.
- sectionInstructions: the instruction text printed at the start of the section this question belongs to, if any; otherwise empty string.
- Include every question from the skeleton exactly once, keyed by its questionNumber. Never invent questions.`

// EnrichQuestions 对结构化结果做语义增强并合并。
// 大模型失败或输出为空时走纯结构化降级路径，不中断管线。
func (s *EnrichmentService) EnrichQuestions(ctx context.Context, structural *extract.StructuralResult) *ExtractedExam {
	prompt := buildEnrichmentPrompt(structural)

	var result enrichmentResult
	ok, err := s.aiService.GenerateObject(ctx, s.config.ExtractionModel, enrichmentSystemPrompt, prompt, &result)
	if err != nil {
		logger.Log.Warn("语义增强调用失败，降级为纯结构化结果", zap.Error(err))
		ok = false
	}

	enrichedByNumber := make(map[string]enrichedQuestion)
	if ok {
		for _, eq := range result.Questions {
			key := extract.NormalizeQuestionNumber(eq.QuestionNumber)
			if _, exists := enrichedByNumber[key]; !exists {
				enrichedByNumber[key] = eq
			}
		}
	}

	exam := &ExtractedExam{Metadata: structural.Metadata}
	if ok {
		exam.Metadata = mergeMetadata(structural.Metadata, result)
	}
	for i, sq := range structural.Questions {
		merged := mergeQuestion(sq, enrichedByNumber)
		merged.OrderIndex = i
		exam.Questions = append(exam.Questions, merged)
	}
	return exam
}

// mergeMetadata 卷面元信息合并：增强结果优先，缺失字段回落到结构化嗅探值。
// 结构化嗅探只认固定的科目/年级表，模型能读出表外的卷头。总分始终取结构化值。
func mergeMetadata(structural extract.Metadata, result enrichmentResult) extract.Metadata {
	merged := structural
	if subject := strings.TrimSpace(result.Subject); subject != "" {
		merged.Subject = subject
	}
	if grade := strings.TrimSpace(result.Grade); grade != "" {
		merged.Grade = grade
	}
	if school := strings.TrimSpace(result.SchoolName); school != "" {
		merged.School = school
	}
	return merged
}

// mergeQuestion 单题合并：结构化提供位置事实，增强结果提供语义事实。
// 确认图片只能从该题的邻近图片集合里选，模型跨题引用一律丢弃。
func mergeQuestion(sq extract.StructuralQuestion, enriched map[string]enrichedQuestion) ExtractedQuestion {
	q := ExtractedQuestion{
		QuestionNumber: sq.QuestionNumber,
		Text:           sq.Text,
		PageNumber:     sq.PageNumber,
		Marks:          sq.Marks,
		Section:        sq.Section,
	}

	eq, hasEnrichment := enriched[extract.NormalizeQuestionNumber(sq.QuestionNumber)]
	if !hasEnrichment {
		// 降级：题型按选项数量推断，图片列表保持为空
		q.Type = fallbackQuestionType(sq)
		for _, opt := range sq.Options {
			q.Options = append(q.Options, ExtractedOption{Label: opt.Label, Text: opt.Text})
		}
		return q
	}

	if text := strings.TrimSpace(eq.QuestionText); text != "" {
		q.Text = text
	}
	q.Type = parseQuestionType(eq.QuestionType, sq)
	q.ExpectedAnswer = strings.TrimSpace(eq.ExpectedAnswer)
	q.SectionInstructions = strings.TrimSpace(eq.SectionInstructions)

	if len(eq.Options) > 0 {
		for _, opt := range eq.Options {
			q.Options = append(q.Options, ExtractedOption{Label: opt.Label, Text: opt.Text})
		}
	} else {
		for _, opt := range sq.Options {
			q.Options = append(q.Options, ExtractedOption{Label: opt.Label, Text: opt.Text})
		}
	}

	nearby := make(map[string]bool, len(sq.NearbyImageIDs))
	for _, id := range sq.NearbyImageIDs {
		nearby[id] = true
	}
	for _, id := range eq.ConfirmedImageIds {
		if nearby[id] {
			q.ImageIDs = append(q.ImageIDs, id)
		}
	}
	return q
}

func parseQuestionType(raw string, sq extract.StructuralQuestion) model.QuestionType {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case string(model.QuestionTypeMCQ):
		return model.QuestionTypeMCQ
	case string(model.QuestionTypeFillBlank):
		return model.QuestionTypeFillBlank
	case string(model.QuestionTypeShortAnswer):
		return model.QuestionTypeShortAnswer
	case string(model.QuestionTypeLongAnswer):
		return model.QuestionTypeLongAnswer
	default:
		return fallbackQuestionType(sq)
	}
}

// fallbackQuestionType 无语义信息时的题型推断：检出两个以上选项视为选择题
func fallbackQuestionType(sq extract.StructuralQuestion) model.QuestionType {
	if len(sq.Options) >= 2 {
		return model.QuestionTypeMCQ
	}
	return model.QuestionTypeShortAnswer
}

// buildEnrichmentPrompt 拼装增强提示词：先骨架，后全文
func buildEnrichmentPrompt(structural *extract.StructuralResult) string {
	var b strings.Builder
	b.WriteString("## Detected question skeleton\n\n")
	for _, q := range structural.Questions {
		fmt.Fprintf(&b, "- questionNumber=%q page=%d", q.QuestionNumber, q.PageNumber)
		if q.Marks != nil {
			fmt.Fprintf(&b, " marks=%d", *q.Marks)
		}
		if q.Section != "" {
			fmt.Fprintf(&b, " section=%q", q.Section)
		}
		if len(q.NearbyImageIDs) > 0 {
			fmt.Fprintf(&b, " nearbyImages=%s", strings.Join(q.NearbyImageIDs, ","))
		}
		b.WriteString("\n")
	}

	if len(structural.ImagePositions) > 0 {
		b.WriteString("\n## OCR images\n\n")
		for _, pos := range structural.ImagePositions {
			fmt.Fprintf(&b, "- id=%s page=%d\n", pos.ImageID, pos.PageNumber)
		}
	}

	b.WriteString("\n## Full document\n\n")
	b.WriteString(structural.FullDocument)
	return b.String()
}
