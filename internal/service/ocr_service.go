package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/extract"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// OcrService Mistral OCR 服务客户端。
// OCR 是外部黑盒：PDF 进，逐页 markdown + 内嵌图片出。
type OcrService struct {
	config config.OCRConfig
	client *http.Client
}

func NewOcrService(cfg config.OCRConfig) *OcrService {
	return &OcrService{
		config: cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           documentURL `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type documentURL struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index      int           `json:"index"`
	Markdown   string        `json:"markdown"`
	Images     []ocrImage    `json:"images"`
	Dimensions ocrDimensions `json:"dimensions"`
}

type ocrDimensions struct {
	DPI    int `json:"dpi"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ocrImage struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64"`
}

// OcrResult 一次 OCR 调用的完整结果
type OcrResult struct {
	Pages   []extract.Page
	RawJSON string // 原始响应，落库排障用
}

var dataURLRe = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// Process 对指定文档地址执行 OCR，失败时按配置的次数重试。
// 重试耗尽后错误向上传播，由调用方将整个处理流程标记为失败。
func (s *OcrService) Process(ctx context.Context, documentURLStr string) (*OcrResult, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.Warn("OCR 调用失败，重试中",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		result, err := s.processOnce(ctx, documentURLStr)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("OCR processing failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

func (s *OcrService) processOnce(ctx context.Context, documentURLStr string) (*OcrResult, error) {
	reqBody := ocrRequest{
		Model: s.config.Model,
		Document: documentURL{
			Type:        "document_url",
			DocumentURL: documentURLStr,
		},
		IncludeImageBase64: true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/ocr", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR API error (status %d): %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("parse OCR response: %w", err)
	}

	return &OcrResult{
		Pages:   s.mapPages(ocrResp),
		RawJSON: string(body),
	}, nil
}

// mapPages 将 OCR 响应转为管线内部页模型；页号从 1 开始
func (s *OcrService) mapPages(resp ocrResponse) []extract.Page {
	pages := make([]extract.Page, 0, len(resp.Pages))

	for i, p := range resp.Pages {
		pageNumber := i + 1
		page := extract.Page{
			PageNumber: pageNumber,
			Markdown:   p.Markdown,
		}

		for _, img := range p.Images {
			// base64 可能带 data URL 前缀："data:image/jpeg;base64,..."
			b64 := img.ImageBase64
			mimeType := "image/jpeg"
			if m := dataURLRe.FindStringSubmatch(b64); m != nil {
				mimeType = m[1]
				b64 = m[2]
			}

			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				logger.Log.Warn("图片 base64 解码失败，跳过",
					zap.String("imageId", img.ID),
					zap.Int("page", pageNumber))
				continue
			}

			id := img.ID
			if id == "" {
				id = fmt.Sprintf("page-%d-img-unknown", pageNumber)
			}

			page.Images = append(page.Images, extract.Image{
				ID:           id,
				Data:         data,
				MimeType:     mimeType,
				PageNumber:   pageNumber,
				TopLeftX:     img.TopLeftX,
				TopLeftY:     img.TopLeftY,
				BottomRightX: img.BottomRightX,
				BottomRightY: img.BottomRightY,
				PageWidth:    p.Dimensions.Width,
				PageHeight:   p.Dimensions.Height,
			})
		}

		pages = append(pages, page)
	}

	return pages
}
