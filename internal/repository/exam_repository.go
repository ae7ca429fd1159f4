package repository

import (
	"errors"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) FindByID(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.First(&exam, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &exam, err
}

// FindByIDWithDetail 完整装载：节 → 题 → 选项/图片，全部按序
func (r *ExamRepository) FindByIDWithDetail(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("Sections.Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("Sections.Questions.Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Preload("Images").
		First(&exam, "id = ?", id).Error
	return &exam, err
}

func (r *ExamRepository) FindByUser(userID uint) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&exams).Error
	return exams, err
}

// FindByUserAndHash 同一用户重复上传检测
func (r *ExamRepository) FindByUserAndHash(userID uint, hash string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Where("user_id = ? AND file_hash = ?", userID, hash).
		First(&exam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) UpdateStatus(id string, status model.ExamStatus, errorMessage string) error {
	return r.DB.Model(&model.Exam{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}).Error
}

func (r *ExamRepository) SaveRawOcr(id string, raw string) error {
	return r.DB.Model(&model.Exam{}).Where("id = ?", id).
		Update("raw_ocr_result", raw).Error
}

func (r *ExamRepository) FindQuestion(examID, questionID string) (*model.Question, error) {
	var question model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&question, "id = ? AND exam_id = ?", questionID, examID).Error
	return &question, err
}

func (r *ExamRepository) FindQuestionByNumber(examID, questionNumber string) (*model.Question, error) {
	var question model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&question, "exam_id = ? AND question_number = ?", examID, questionNumber).Error
	return &question, err
}

// FindStale 查找长时间停留在中间状态的试卷，供对账任务使用
func (r *ExamRepository) FindStale(statuses []model.ExamStatus, olderThanMinutes int) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.
		Where("status IN ?", statuses).
		Where("updated_at < DATE_SUB(NOW(), INTERVAL ? MINUTE)", olderThanMinutes).
		Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) ListPdfKeys() ([]string, error) {
	var keys []string
	err := r.DB.Model(&model.Exam{}).Pluck("pdf_key", &keys).Error
	return keys, err
}

func (r *ExamRepository) ListImageKeys() ([]string, error) {
	var keys []string
	err := r.DB.Model(&model.ExamImage{}).Pluck("storage_key", &keys).Error
	return keys, err
}

// examChildModels 按删除顺序列出试卷聚合的全部子表模型，
// 均带 exam_id 列。选项表通过题目 ID 间接挂靠，单独处理。
func examChildModels() []interface{} {
	return []interface{}{
		&model.UserAnswer{},
		&model.ExamImage{},
		&model.Question{},
		&model.ExamSection{},
		&model.ChatMessage{},
	}
}

// Delete 硬删除整卷及全部子表行。
// 模型带软删除字段，直接 Delete 只会标记 exams 行，外键级联不会触发，
// 且残留的 exam_images 行会让对账任务永远视其对象为"仍被引用"——
// 所以子表必须在同一事务里 Unscoped 逐级清掉。
func (r *ExamRepository) Delete(exam *model.Exam) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []string
		if err := tx.Model(&model.Question{}).Where("exam_id = ?", exam.ID).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Unscoped().Where("question_id IN ?", questionIDs).
				Delete(&model.AnswerOption{}).Error; err != nil {
				return err
			}
		}

		for _, children := range examChildModels() {
			if err := tx.Unscoped().Where("exam_id = ?", exam.ID).Delete(children).Error; err != nil {
				return err
			}
		}

		return tx.Unscoped().Delete(exam).Error
	})
}

// ===== 提取结果落库 =====

type SectionInput struct {
	Name         string
	Instructions string
	Questions    []QuestionInput
}

type QuestionInput struct {
	QuestionNumber string
	Text           string
	Type           model.QuestionType
	PageNumber     int
	Marks          *int
	ExpectedAnswer string
	Options        []OptionInput
	ImageIDs       []string // OCR 图片源 ID，落库时解析为外键
}

type OptionInput struct {
	Label string
	Text  string
}

type ImageInput struct {
	SourceID   string
	StorageKey string
	ImageType  string
}

type AnswerKeyInput struct {
	QuestionNumber string
	Answer         string
	AnswerType     string // mcq_option 或 text
}

type ExtractionInput struct {
	Subject             string
	Grade               string
	School              string
	TotalMarks          *int
	HasAnswerKey        bool
	AnswerKeyConfidence string
	Sections            []SectionInput
	Images              []ImageInput
	AnswerKey           []AnswerKeyInput
}

// normalizeExpectedAnswer 落库前统一答案格式。
// 选择题答案统一成大写选项标签（"b." → "B"），判卷时才能和选项标签直接比对；
// 解答题保留原文，只去首尾空白。
func normalizeExpectedAnswer(answer, answerType string) string {
	answer = strings.TrimSpace(answer)
	if answerType == "mcq_option" {
		return strings.ToUpper(strings.TrimSuffix(answer, "."))
	}
	return answer
}

// SaveExtraction 把整卷提取结果写进一个事务：节、题、选项、图片、答案关联、试卷元信息。
// 任意一步失败整体回滚，试卷保持可重试状态。
func (r *ExamRepository) SaveExtraction(examID string, input *ExtractionInput) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		// 归一化题号 → 题目，答案关联与图片关联都查这张表。
		// 归一化碰撞时先入者优先，只记警告。
		questionsByNumber := make(map[string]*model.Question)
		imageQuestionID := make(map[string]string)

		questionOrder := 0
		for sectionIdx, sectionInput := range input.Sections {
			section := model.ExamSection{
				ExamID:       examID,
				Name:         sectionInput.Name,
				Instructions: sectionInput.Instructions,
				OrderIndex:   sectionIdx,
			}
			if err := tx.Create(&section).Error; err != nil {
				return err
			}

			for _, questionInput := range sectionInput.Questions {
				question := model.Question{
					ExamID:         examID,
					SectionID:      section.ID,
					QuestionNumber: questionInput.QuestionNumber,
					QuestionText:   questionInput.Text,
					QuestionType:   questionInput.Type,
					PageNumber:     questionInput.PageNumber,
					Marks:          questionInput.Marks,
					ExpectedAnswer: questionInput.ExpectedAnswer,
					OrderIndex:     questionOrder,
				}
				questionOrder++
				if err := tx.Create(&question).Error; err != nil {
					return err
				}

				key := extract.NormalizeQuestionNumber(questionInput.QuestionNumber)
				if existing, ok := questionsByNumber[key]; ok {
					logger.Log.Warn("题号归一化碰撞，保留先入者",
						zap.String("examId", examID),
						zap.String("kept", existing.QuestionNumber),
						zap.String("dropped", questionInput.QuestionNumber))
				} else {
					questionsByNumber[key] = &question
				}

				for optIdx, optionInput := range questionInput.Options {
					option := model.AnswerOption{
						QuestionID:  question.ID,
						OptionLabel: optionInput.Label,
						OptionText:  optionInput.Text,
						OrderIndex:  optIdx,
					}
					if err := tx.Create(&option).Error; err != nil {
						return err
					}
				}

				for _, imageID := range questionInput.ImageIDs {
					if _, taken := imageQuestionID[imageID]; !taken {
						imageQuestionID[imageID] = question.ID
					}
				}
			}
		}

		for imgIdx, imageInput := range input.Images {
			image := model.ExamImage{
				ExamID:     examID,
				StorageKey: imageInput.StorageKey,
				SourceID:   imageInput.SourceID,
				ImageType:  imageInput.ImageType,
				OrderIndex: imgIdx,
			}
			if questionID, ok := imageQuestionID[imageInput.SourceID]; ok {
				image.QuestionID = &questionID
			}
			if err := tx.Create(&image).Error; err != nil {
				return err
			}
		}

		// 答案页关联：只更新已有题目，绝不因答案页多出的条目造题
		for _, entry := range input.AnswerKey {
			key := extract.NormalizeQuestionNumber(entry.QuestionNumber)
			question, ok := questionsByNumber[key]
			if !ok {
				logger.Log.Warn("答案条目无法匹配任何题目，丢弃",
					zap.String("examId", examID),
					zap.String("questionNumber", entry.QuestionNumber))
				continue
			}
			if err := tx.Model(&model.Question{}).Where("id = ?", question.ID).
				Update("expected_answer", normalizeExpectedAnswer(entry.Answer, entry.AnswerType)).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.Exam{}).Where("id = ?", examID).Updates(map[string]interface{}{
			"subject":               input.Subject,
			"grade":                 input.Grade,
			"school_name":           input.School,
			"total_marks":           input.TotalMarks,
			"has_answer_key":        input.HasAnswerKey,
			"answer_key_confidence": input.AnswerKeyConfidence,
			"status":                model.ExamStatusCompleted,
			"error_message":         "",
		}).Error
	})
}
