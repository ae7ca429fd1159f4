package model

// ChatRole 对话角色
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage AI 辅导对话记录，按试卷 + 题号维度组织
// swagger:model ChatMessage
type ChatMessage struct {
	UUIDBase
	ExamID         string   `gorm:"index:idx_chat_thread;type:varchar(36);not null" json:"examId"`
	QuestionNumber string   `gorm:"index:idx_chat_thread;size:20" json:"questionNumber"`
	UserID         uint     `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Role           ChatRole `gorm:"type:enum('user','assistant');not null" json:"role"`
	Content        string   `gorm:"type:text;not null" json:"content"`
	AIModel        string   `gorm:"size:80" json:"aiModel,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
