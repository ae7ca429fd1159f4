package service

import (
	"bytes"
	"errors"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/internal/repository"
	"exam_tutor_backend/internal/util"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportService 把提取完成的试卷导出为 xlsx，老师离线核对用
type ExportService struct {
	examRepo *repository.ExamRepository
}

func NewExportService(examRepo *repository.ExamRepository) *ExportService {
	return &ExportService{examRepo: examRepo}
}

var exportHeaders = []string{"节", "题号", "题型", "页码", "分值", "题目", "选项", "参考答案"}

// ExportExam 生成 xlsx 文件内容。返回文件名与字节流。
func (s *ExportService) ExportExam(examID string, userID uint) (string, []byte, error) {
	exam, err := s.examRepo.FindByIDWithDetail(examID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, util.ErrExamNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if exam.UserID != userID {
		return "", nil, util.ErrPermissionDenied
	}
	if exam.Status != model.ExamStatusCompleted {
		return "", nil, util.ErrExamNotReady
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Questions"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return "", nil, err
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	f.SetColWidth(sheet, "F", "F", 60)
	f.SetColWidth(sheet, "G", "H", 30)

	row := 2
	for _, section := range exam.Sections {
		sectionName := section.Name
		if sectionName == "" {
			sectionName = "-"
		}
		for _, question := range section.Questions {
			values := []interface{}{
				sectionName,
				question.QuestionNumber,
				string(question.QuestionType),
				question.PageNumber,
				marksValue(question.Marks),
				question.QuestionText,
				formatOptions(question.Options),
				question.ExpectedAnswer,
			}
			for col, value := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(sheet, cell, value)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", nil, err
	}

	filename := fmt.Sprintf("%s.xlsx", strings.TrimSuffix(exam.Filename, ".pdf"))
	return filename, buf.Bytes(), nil
}

func marksValue(marks *int) interface{} {
	if marks == nil {
		return ""
	}
	return *marks
}

func formatOptions(options []model.AnswerOption) string {
	if len(options) == 0 {
		return ""
	}
	parts := make([]string, 0, len(options))
	for _, opt := range options {
		parts = append(parts, fmt.Sprintf("%s. %s", opt.OptionLabel, opt.OptionText))
	}
	return strings.Join(parts, "\n")
}
