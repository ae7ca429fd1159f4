package service

import (
	"bytes"
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

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const presignedUploadTTL = 15 * time.Minute

// UploadService 试卷上传：优先走客户端直传（预签名），本地存储退化为服务端直收
type UploadService struct {
	examRepo       *repository.ExamRepository
	storageService *StorageService
	processor      *ProcessorService
	config         config.UploadConfig
}

func NewUploadService(
	examRepo *repository.ExamRepository,
	storageService *StorageService,
	processor *ProcessorService,
	cfg config.UploadConfig,
) *UploadService {
	return &UploadService{
		examRepo:       examRepo,
		storageService: storageService,
		processor:      processor,
		config:         cfg,
	}
}

// PresignedUpload 预签名直传凭据
type PresignedUpload struct {
	ExamID    string `json:"examId"`
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// ConfirmResult 直传确认结果。Duplicate 为 true 时 ExamID 指向已有试卷。
type ConfirmResult struct {
	ExamID    string           `json:"examId"`
	Status    model.ExamStatus `json:"status"`
	Duplicate bool             `json:"duplicate"`
}

// RequestPresignedUpload 创建待上传试卷并签发直传地址
func (s *UploadService) RequestPresignedUpload(ctx context.Context, userID uint, filename string, fileSize int64) (*PresignedUpload, error) {
	if err := s.validateRequest(filename, fileSize); err != nil {
		return nil, err
	}

	key := util.GenerateFileKey("pdfs", filename)
	uploadURL, err := s.storageService.PresignedPutURL(ctx, key, presignedUploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	exam := &model.Exam{
		UserID:   userID,
		Filename: filename,
		PdfKey:   key,
		Status:   model.ExamStatusPending,
	}
	if err := s.examRepo.Create(exam); err != nil {
		return nil, err
	}

	return &PresignedUpload{
		ExamID:    exam.ID,
		UploadURL: uploadURL,
		Key:       key,
	}, nil
}

// ConfirmUpload 客户端直传完成后的确认：校验对象存在、PDF 合法、去重，然后启动处理
func (s *UploadService) ConfirmUpload(ctx context.Context, examID string, userID uint) (*ConfirmResult, error) {
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
	if exam.Status != model.ExamStatusPending {
		// 重复确认是幂等的：直接回报当前状态
		return &ConfirmResult{ExamID: exam.ID, Status: exam.Status}, nil
	}

	exists, err := s.storageService.Exists(ctx, exam.PdfKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrFileNotInStorage
	}

	data, err := s.storageService.Download(ctx, exam.PdfKey)
	if err != nil {
		return nil, err
	}
	if err := s.validatePDF(data); err != nil {
		return nil, err
	}

	hash := util.FileHash(data)
	duplicate, err := s.findDuplicate(userID, hash, exam.ID)
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		s.discardUpload(ctx, exam)
		return &ConfirmResult{ExamID: duplicate.ID, Status: duplicate.Status, Duplicate: true}, nil
	}

	if err := s.examRepo.DB.Model(&model.Exam{}).Where("id = ?", exam.ID).
		Update("file_hash", hash).Error; err != nil {
		return nil, err
	}

	s.processor.Launch(exam.ID)
	return &ConfirmResult{ExamID: exam.ID, Status: model.ExamStatusProcessing}, nil
}

// DirectUpload 服务端直收（本地存储或不支持直传的客户端）
func (s *UploadService) DirectUpload(ctx context.Context, userID uint, filename string, data []byte) (*ConfirmResult, error) {
	if err := s.validateRequest(filename, int64(len(data))); err != nil {
		return nil, err
	}
	if _, err := util.ValidateMimeType(bytes.NewReader(data), []string{util.MimePDF}); err != nil {
		return nil, util.ErrInvalidPDF
	}
	if err := s.validatePDF(data); err != nil {
		return nil, err
	}

	hash := util.FileHash(data)
	duplicate, err := s.findDuplicate(userID, hash, "")
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		return &ConfirmResult{ExamID: duplicate.ID, Status: duplicate.Status, Duplicate: true}, nil
	}

	key := util.GenerateFileKey("pdfs", filename)
	if err := s.storageService.UploadBytes(ctx, key, data, util.MimePDF); err != nil {
		return nil, fmt.Errorf("store pdf: %w", err)
	}

	exam := &model.Exam{
		UserID:   userID,
		Filename: filename,
		PdfKey:   key,
		FileHash: hash,
		Status:   model.ExamStatusPending,
	}
	if err := s.examRepo.Create(exam); err != nil {
		return nil, err
	}

	s.processor.Launch(exam.ID)
	return &ConfirmResult{ExamID: exam.ID, Status: model.ExamStatusProcessing}, nil
}

func (s *UploadService) validateRequest(filename string, fileSize int64) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return util.ErrInvalidPDF
	}
	maxBytes := int64(s.config.MaxFileSizeMB) * 1024 * 1024
	if fileSize <= 0 || fileSize > maxBytes {
		return fmt.Errorf("文件大小超出限制（最大 %dMB）", s.config.MaxFileSizeMB)
	}
	return nil
}

// validatePDF 结构校验 + 页数上限
func (s *UploadService) validatePDF(data []byte) error {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return util.ErrInvalidPDF
	}
	if reader.NumPage() > s.config.MaxPages {
		return util.ErrTooManyPages
	}
	return nil
}

// findDuplicate 同一用户同一文件内容只处理一次；失败的旧记录允许重新上传
func (s *UploadService) findDuplicate(userID uint, hash, excludeExamID string) (*model.Exam, error) {
	existing, err := s.examRepo.FindByUserAndHash(userID, hash)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.ID == excludeExamID || existing.Status == model.ExamStatusFailed {
		return nil, nil
	}
	return existing, nil
}

func (s *UploadService) discardUpload(ctx context.Context, exam *model.Exam) {
	if err := s.storageService.Delete(ctx, exam.PdfKey); err != nil {
		logger.Log.Warn("清理重复上传对象失败", zap.String("key", exam.PdfKey), zap.Error(err))
	}
	if err := s.examRepo.Delete(exam); err != nil {
		logger.Log.Warn("清理重复上传记录失败", zap.String("examId", exam.ID), zap.Error(err))
	}
}
