package repository

import (
	"context"
	"encoding/json"
	"exam_tutor_backend/internal/model"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	chatCacheTTL   = 30 * time.Minute
	chatHistoryMax = 50
)

// ChatRepository 辅导对话历史。MySQL 持久化，Redis 缓存热对话。
// Redis 不可用时自动退化为纯数据库读写。
type ChatRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewChatRepository(db *gorm.DB, rdb *redis.Client) *ChatRepository {
	return &ChatRepository{DB: db, Redis: rdb}
}

func chatCacheKey(userID uint, examID, questionNumber string) string {
	return fmt.Sprintf("tutor:history:%d:%s:%s", userID, examID, questionNumber)
}

func (r *ChatRepository) Append(ctx context.Context, msg *model.ChatMessage) error {
	if err := r.DB.Create(msg).Error; err != nil {
		return err
	}
	// 写后失效，下一次读取时回填
	if r.Redis != nil {
		r.Redis.Del(ctx, chatCacheKey(msg.UserID, msg.ExamID, msg.QuestionNumber))
	}
	return nil
}

// History 按时间顺序返回某题的辅导对话，最多 chatHistoryMax 条
func (r *ChatRepository) History(ctx context.Context, userID uint, examID, questionNumber string) ([]model.ChatMessage, error) {
	key := chatCacheKey(userID, examID, questionNumber)

	if r.Redis != nil {
		cached, err := r.Redis.Get(ctx, key).Result()
		if err == nil {
			var messages []model.ChatMessage
			if json.Unmarshal([]byte(cached), &messages) == nil {
				return messages, nil
			}
		}
	}

	var messages []model.ChatMessage
	err := r.DB.
		Where("user_id = ? AND exam_id = ? AND question_number = ?", userID, examID, questionNumber).
		Order("created_at ASC").
		Limit(chatHistoryMax).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	if r.Redis != nil {
		if data, err := json.Marshal(messages); err == nil {
			r.Redis.Set(ctx, key, data, chatCacheTTL)
		}
	}
	return messages, nil
}
