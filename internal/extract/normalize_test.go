package extract

import "testing"

func TestNormalizeQuestionNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"Q1", "1"},
		{"q1.", "1"},
		{"Qn 2", "2"},
		{"Question 3", "3"},
		{"1(a)", "1a"},
		{"1 (a)", "1a"},
		{" 4 a ", "4a"},
		{"2A", "2a"},
		{"Q10.", "10"},
		{"(q)1", "1"},
		{"q.q.1", "1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeQuestionNumber(tt.in); got != tt.want {
			t.Errorf("NormalizeQuestionNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// 归一化必须幂等，否则存储与查询两侧会算出不同的 key
func TestNormalizeQuestionNumberIdempotent(t *testing.T) {
	// "(q)1" 一类输入：去标点后重新暴露出 q 前缀，必须一轮归一到底
	inputs := []string{"Q1", "1(a)", "Question 12", "qn 3.", "2 B", "(q)1", "(qn) 7", "q.q.1"}
	for _, in := range inputs {
		once := NormalizeQuestionNumber(in)
		twice := NormalizeQuestionNumber(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

// 不同写法的同一题号必须归一到同一个 key
func TestNormalizeQuestionNumberEquivalence(t *testing.T) {
	groups := [][]string{
		{"1", "Q1", "q1.", "Question 1"},
		{"2a", "2(a)", "2 (a)", "Q2a"},
	}
	for _, group := range groups {
		want := NormalizeQuestionNumber(group[0])
		for _, in := range group[1:] {
			if got := NormalizeQuestionNumber(in); got != want {
				t.Errorf("NormalizeQuestionNumber(%q) = %q, want %q (same as %q)", in, got, want, group[0])
			}
		}
	}
}
