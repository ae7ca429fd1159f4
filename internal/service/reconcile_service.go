package service

import (
	"context"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/internal/repository"
	"exam_tutor_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// 处理中状态超过这个时长视为僵死（进程重启丢失的 goroutine）
const staleProcessingMinutes = 120

// ReconcileService 后台对账：清理孤儿存储对象、标记僵死任务。
// 上传后崩溃、删除时清理失败等场景都靠它兜底。
type ReconcileService struct {
	examRepo       *repository.ExamRepository
	storageService *StorageService
}

func NewReconcileService(examRepo *repository.ExamRepository, storageService *StorageService) *ReconcileService {
	return &ReconcileService{examRepo: examRepo, storageService: storageService}
}

// Run 执行一轮对账
func (s *ReconcileService) Run(ctx context.Context) {
	s.markStaleExams()
	s.cleanOrphanObjects(ctx, "pdfs/", s.examRepo.ListPdfKeys)
	s.cleanOrphanObjects(ctx, "images/", s.examRepo.ListImageKeys)
}

// markStaleExams 把长时间卡在中间状态的试卷标记为失败，允许用户重试
func (s *ReconcileService) markStaleExams() {
	stale, err := s.examRepo.FindStale(
		[]model.ExamStatus{model.ExamStatusPending, model.ExamStatusProcessing},
		staleProcessingMinutes,
	)
	if err != nil {
		logger.Log.Warn("查询僵死任务失败", zap.Error(err))
		return
	}
	for _, exam := range stale {
		if err := s.examRepo.UpdateStatus(exam.ID, model.ExamStatusFailed, "处理超时，请重新上传"); err != nil {
			logger.Log.Warn("标记僵死任务失败", zap.String("examId", exam.ID), zap.Error(err))
			continue
		}
		logger.Log.Info("僵死任务已标记失败",
			zap.String("examId", exam.ID),
			zap.String("previousStatus", string(exam.Status)))
	}
}

// cleanOrphanObjects 删除存储里数据库不再引用的对象
func (s *ReconcileService) cleanOrphanObjects(ctx context.Context, prefix string, listReferenced func() ([]string, error)) {
	stored, err := s.storageService.ListObjects(ctx, prefix)
	if err != nil {
		logger.Log.Warn("列举存储对象失败", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	if len(stored) == 0 {
		return
	}

	referencedKeys, err := listReferenced()
	if err != nil {
		logger.Log.Warn("查询引用对象失败", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	referenced := make(map[string]bool, len(referencedKeys))
	for _, key := range referencedKeys {
		referenced[key] = true
	}

	removed := 0
	for _, key := range orphanKeys(stored, referenced, time.Now()) {
		if err := s.storageService.Delete(ctx, key); err != nil {
			logger.Log.Warn("删除孤儿对象失败", zap.String("key", key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Log.Info("孤儿对象清理完成",
			zap.String("prefix", prefix),
			zap.Int("removed", removed))
	}
}

// orphanKeys 挑出可以安全删除的对象。
// 正在处理中的试卷会先写存储再落库，刚上传、尚未被任何行引用的对象
// 不能当孤儿删，只清理超过僵死窗口的旧对象。
func orphanKeys(stored []StoredObject, referenced map[string]bool, now time.Time) []string {
	minAge := staleProcessingMinutes * time.Minute
	var keys []string
	for _, obj := range stored {
		if referenced[obj.Key] {
			continue
		}
		if now.Sub(obj.LastModified) < minAge {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys
}
