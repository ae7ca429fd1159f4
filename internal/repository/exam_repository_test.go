package repository

import (
	"exam_tutor_backend/internal/model"
	"testing"

	"gorm.io/gorm/schema"
)

// 删除整卷时每一张挂在 exam_id 下的子表都必须被硬删，
// 漏掉任何一张都会让软删除残留行把存储对象标成"仍被引用"。
func TestExamChildModelsCoverAllExamScopedTables(t *testing.T) {
	want := map[string]bool{
		"user_answers":  false,
		"exam_images":   false,
		"questions":     false,
		"exam_sections": false,
		"chat_messages": false,
	}

	for _, m := range examChildModels() {
		tabler, ok := m.(schema.Tabler)
		if !ok {
			t.Fatalf("child model %T has no TableName", m)
		}
		name := tabler.TableName()
		seen, expected := want[name]
		if !expected {
			t.Errorf("unexpected child table %q", name)
			continue
		}
		if seen {
			t.Errorf("child table %q listed twice", name)
		}
		want[name] = true
	}

	for name, seen := range want {
		if !seen {
			t.Errorf("exam-scoped table %q missing from purge list", name)
		}
	}

	// 选项表不带 exam_id，靠题目 ID 间接删除，确认它确实不在列表里
	for _, m := range examChildModels() {
		if _, isOption := m.(*model.AnswerOption); isOption {
			t.Error("answer options carry no exam_id column and must be purged via question ids")
		}
	}
}

func TestNormalizeExpectedAnswer(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		answerType string
		want       string
	}{
		{"选项标签转大写", "b", "mcq_option", "B"},
		{"去掉选项尾部句点", " c. ", "mcq_option", "C"},
		{"已规范的选项原样保留", "D", "mcq_option", "D"},
		{"解答文本只去首尾空白", "  x = 4, y = -2  ", "text", "x = 4, y = -2"},
		{"解答文本不改大小写", "the mitochondria", "text", "the mitochondria"},
		{"类型缺失按文本处理", " B ", "", "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeExpectedAnswer(tt.answer, tt.answerType); got != tt.want {
				t.Errorf("normalizeExpectedAnswer(%q, %q) = %q, want %q", tt.answer, tt.answerType, got, tt.want)
			}
		})
	}
}
