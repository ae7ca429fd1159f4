package extract

import (
	"regexp"
	"strings"
)

var (
	qnPrefixRe = regexp.MustCompile(`^(?:question|qn|q)`)
	qnStripRe  = regexp.MustCompile(`[().\s]`)
)

// NormalizeQuestionNumber 题号归一化，用于答案表与题目的匹配。
// "Q1"、"Qn 1."、"1" 均归一为 "1"；函数为全函数且幂等。
// 先去标点再剥前缀：标点剥掉后可能重新暴露出前缀（如 "(q)1"），
// 前缀循环剥到不动点，保证二次归一化不再变化。
// 归一化有损：不同原始题号可能撞到同一个 key（如 "1a" 与 "1 a"），
// 撞 key 时由调用方决定取舍。
func NormalizeQuestionNumber(qn string) string {
	s := strings.ToLower(strings.TrimSpace(qn))
	s = qnStripRe.ReplaceAllString(s, "")
	for {
		next := qnPrefixRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}
