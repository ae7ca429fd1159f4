package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/pkg/logger"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// AIService Groq 托管大模型的统一封装（OpenAI 兼容接口）。
// 不同管线阶段使用不同模型，由调用方按配置挑选。
type AIService struct {
	config config.AIConfig
	client *openai.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &AIService{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// GenerateObject 让模型输出 JSON 并反序列化到 result。
// ok=false 表示模型给出了空输出或显式拒绝，调用方应走降级路径而非报错。
func (s *AIService) GenerateObject(ctx context.Context, model, system, prompt string, result any) (ok bool, err error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Log.Warn("大模型调用失败，重试中",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		ok, err = s.generateObjectOnce(ctx, model, system, prompt, result)
		if err == nil {
			return ok, nil
		}
		lastErr = err
	}
	return false, fmt.Errorf("LLM call failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

func (s *AIService) generateObjectOnce(ctx context.Context, model, system, prompt string, result any) (bool, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return false, err
	}
	if len(resp.Choices) == 0 {
		return false, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return false, nil
	}
	content = stripCodeFence(content)

	if err := json.Unmarshal([]byte(content), result); err != nil {
		return false, fmt.Errorf("parse model output: %w", err)
	}
	return true, nil
}

// GenerateVisionObject 带单张图片的 JSON 输出调用，用于图片内容判定。
func (s *AIService) GenerateVisionObject(ctx context.Context, prompt string, imageData []byte, mimeType string, result any) (bool, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.config.VisionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: prompt},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: dataURL,
							},
						},
					},
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			return false, nil
		}

		content := stripCodeFence(strings.TrimSpace(resp.Choices[0].Message.Content))
		if content == "" {
			return false, nil
		}
		if err := json.Unmarshal([]byte(content), result); err != nil {
			return false, fmt.Errorf("parse vision output: %w", err)
		}
		return true, nil
	}
	return false, fmt.Errorf("vision call failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

// ChatStream 流式对话。onDelta 在每个增量片段上被调用；返回完整回复文本。
func (s *AIService) ChatStream(ctx context.Context, model string, messages []openai.ChatCompletionMessage, onDelta func(delta string) error) (string, error) {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

// stripCodeFence 去掉模型偶尔包裹的 ```json 代码块
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
