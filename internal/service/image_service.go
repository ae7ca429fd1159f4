package service

import (
	"context"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/internal/util"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ClassifiedImage 分类完成的图片。StorageKey 为空表示该图被判为装饰性内容、未入库。
type ClassifiedImage struct {
	Image          extract.Image
	Classification extract.Classification
	StorageKey     string
}

// ImageService 图片分类与入库。
// 分类链：指令引用直通 → 位置启发式 → 视觉模型兜底。
type ImageService struct {
	aiService      *AIService
	storageService *StorageService
}

func NewImageService(aiService *AIService, storageService *StorageService) *ImageService {
	return &ImageService{aiService: aiService, storageService: storageService}
}

type visionVerdict struct {
	Class      string `json:"class"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

const visionClassifyPrompt = `This image was extracted from a scanned exam paper. Decide whether it is exam CONTENT (a diagram, graph, figure, table or illustration that a question refers to) or ADMINISTRATIVE decoration (school logo, crest, score box, barcode, header or footer art).

Return JSON: {"class": "content"|"administrative", "confidence": "low"|"medium"|"high", "reason": string}`

// ProcessImages 对整卷图片做分类并把内容图片上传到对象存储。
// instructionImageIDs 中的图片是节首说明引用的插图，直接按内容图处理、不再分类。
func (s *ImageService) ProcessImages(ctx context.Context, examID string, pages []extract.Page, instructionImageIDs map[string]bool) []ClassifiedImage {
	var results []ClassifiedImage

	for _, page := range pages {
		for _, img := range page.Images {
			cls := s.classify(ctx, img, instructionImageIDs)

			result := ClassifiedImage{Image: img, Classification: cls}
			if cls.Class == extract.ClassContent {
				key, err := s.store(ctx, examID, img)
				if err != nil {
					// 上传失败只丢这一张图，不拖垮整卷
					logger.Log.Warn("图片上传失败，跳过",
						zap.String("examId", examID),
						zap.String("imageId", img.ID),
						zap.Error(err))
				} else {
					result.StorageKey = key
				}
			}
			results = append(results, result)
		}
	}
	return results
}

func (s *ImageService) classify(ctx context.Context, img extract.Image, instructionImageIDs map[string]bool) extract.Classification {
	if instructionImageIDs[img.ID] {
		return extract.Classification{
			ImageID: img.ID,
			Class:   extract.ClassContent,
			Conf:    extract.ConfidenceHigh,
			Reason:  "Referenced by section instructions",
			Source:  extract.SourceOverride,
		}
	}

	positional := extract.ClassifyByPosition(img)
	if positional.Conf == extract.ConfidenceHigh {
		return positional
	}

	// 位置判定拿不准时问视觉模型；视觉再失败就沿用位置判定
	var verdict visionVerdict
	ok, err := s.aiService.GenerateVisionObject(ctx, visionClassifyPrompt, img.Data, img.MimeType, &verdict)
	if err != nil || !ok {
		if err != nil {
			logger.Log.Warn("视觉分类失败，沿用位置判定",
				zap.String("imageId", img.ID),
				zap.Error(err))
		}
		return positional
	}

	class := extract.ClassContent
	if strings.EqualFold(strings.TrimSpace(verdict.Class), string(extract.ClassAdministrative)) {
		class = extract.ClassAdministrative
	}
	return extract.Classification{
		ImageID: img.ID,
		Class:   class,
		Conf:    extract.Confidence(normalizeConfidence(verdict.Confidence)),
		Reason:  verdict.Reason,
		Source:  extract.SourceVision,
	}
}

func (s *ImageService) store(ctx context.Context, examID string, img extract.Image) (string, error) {
	ext := util.ImageExtension(img.MimeType)
	key := fmt.Sprintf("images/%s/%s.%s", examID, sanitizeImageID(img.ID), ext)
	if err := s.storageService.UploadBytes(ctx, key, img.Data, img.MimeType); err != nil {
		return "", err
	}
	return key, nil
}

// sanitizeImageID OCR 图片 ID 可能自带扩展名（如 "img-0.jpeg"），去掉以免 key 出现双扩展名
func sanitizeImageID(id string) string {
	if idx := strings.LastIndex(id, "."); idx > 0 {
		return id[:idx]
	}
	return id
}
