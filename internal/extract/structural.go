package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// 题号规则表：按优先级排列，首个命中即生效。
// extract 从正则分组拼出题号（"1" + "a" => "1a"）。
var questionRules = []struct {
	re *regexp.Regexp
}{
	// 宽到 4 位，年份开头的行（"2024. Mid-Year"）靠 isLikelyQuestionNumber 过滤
	{regexp.MustCompile(`^(\d{1,4})\.\s+`)},                  // "1. "
	{regexp.MustCompile(`^(\d{1,4})\)\s+`)},                  // "1) "
	{regexp.MustCompile(`(?i)^Q(\d{1,4})[.\s]+`)},            // "Q1."
	{regexp.MustCompile(`^(\d{1,2})([a-z])\)\s*`)},           // "1a)"
	{regexp.MustCompile(`^(\d{1,2})\s*\(([a-z])\)\s*`)},      // "1(a)"
	{regexp.MustCompile(`(?i)^(\d{1,2})\s*\(([ivx]+)\)\s*`)}, // "1(i)"
}

var marksRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\((\d+)\s*marks?\)`), // "(2 marks)"
	regexp.MustCompile(`\[(\d+)\]`),              // "[2]"
	regexp.MustCompile(`(?i)\((\d+)\s*m\)`),      // "(2m)"
	regexp.MustCompile(`(?im)(\d+)\s*marks?\s*$`),
}

var mcqOptionRules = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^([A-D])\.\s+(.+)$`),   // "A. text"
	regexp.MustCompile(`(?m)^([A-D])\)\s+(.+)$`),   // "A) text"
	regexp.MustCompile(`(?m)^\(([A-D])\)\s+(.+)$`), // "(A) text"
}

var (
	sectionRe    = regexp.MustCompile(`(?im)^(?:section|part)\s+([a-z0-9]+)`)
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	pageMarkerRe = regexp.MustCompile(`^---\s*Page\s+(\d+)\s*---$`)
	yearRe       = regexp.MustCompile(`^(?:19|20)\d{2}`)
	schoolRe     = regexp.MustCompile(`(?m)^#*\s*([A-Z][A-Za-z\s]+(?:School|Academy|Institute))`)
)

var totalMarksRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total\s*(?:marks?)?\s*[:\-]?\s*(\d+)`),
	regexp.MustCompile(`(?im)(\d+)\s*marks?\s*$`),
	regexp.MustCompile(`(?m)/\s*(\d+)\s*$`), // "/100"
}

var subjectRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(mathematics?|maths?)\b`),
	regexp.MustCompile(`(?i)\b(english)\b`),
	regexp.MustCompile(`(?i)\b(chinese|华文)\b`),
	regexp.MustCompile(`(?i)\b(science)\b`),
	regexp.MustCompile(`(?i)\b(malay|bahasa)\b`),
	regexp.MustCompile(`(?i)\b(tamil)\b`),
}

// 科目关键词到规范名的映射表
var subjectCanonical = map[string]string{
	"mathematics": "Math",
	"maths":       "Math",
	"math":        "Math",
	"english":     "English",
	"chinese":     "Chinese",
	"华文":          "Chinese",
	"science":     "Science",
	"malay":       "Malay",
	"bahasa":      "Malay",
	"tamil":       "Tamil",
}

var gradeRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:primary|p)\s*(\d)\b`), // "Primary 4", "P4"
	regexp.MustCompile(`(?i)\b(?:grade|g)\s*(\d)\b`),   // "Grade 4"
}

// PageMarker 拼接文档时插入的页边界标记
func PageMarker(pageNumber int) string {
	return fmt.Sprintf("--- Page %d ---", pageNumber)
}

// ParseStructure 结构化预解析：将 OCR 页转换为带行号坐标的题目骨架。
// 确定性、无副作用；未匹配任何规则的内容静默归入当前题目区间。
func ParseStructure(pages []Page) StructuralResult {
	// 拼接全文并记录每页起始行号，保证所有提取结果可回溯到 (页, 行)
	pageLineOffsets := make(map[int]int, len(pages))
	var documentLines []string

	for _, page := range pages {
		pageLineOffsets[page.PageNumber] = len(documentLines)
		documentLines = append(documentLines, PageMarker(page.PageNumber))
		documentLines = append(documentLines, strings.Split(page.Markdown, "\n")...)
	}

	fullDocument := strings.Join(documentLines, "\n")

	imagePositions := extractImagePositions(pages, pageLineOffsets)
	boundaries := findQuestionBoundaries(documentLines)

	var metadata Metadata
	if len(pages) > 0 {
		metadata = extractMetadata(pages[0].Markdown)
	}

	questions := buildQuestions(documentLines, boundaries, imagePositions)

	return StructuralResult{
		Questions:      questions,
		Metadata:       metadata,
		ImagePositions: imagePositions,
		FullDocument:   fullDocument,
	}
}

type boundary struct {
	questionNumber string
	startLine      int
	pageNumber     int
}

func findQuestionBoundaries(lines []string) []boundary {
	var boundaries []boundary
	currentPage := 1

	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if m := pageMarkerRe.FindStringSubmatch(line); m != nil {
			currentPage, _ = strconv.Atoi(m[1])
			continue
		}

		for _, rule := range questionRules {
			m := rule.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			num := m[1]
			if len(m) > 2 && m[2] != "" {
				num += strings.ToLower(m[2]) // "2a"、"3i" 等子题号
			}

			// 误报过滤是前置门槛，不是特例
			if isLikelyQuestionNumber(line, num) {
				boundaries = append(boundaries, boundary{
					questionNumber: num,
					startLine:      i,
					pageNumber:     currentPage,
				})
			}
			break
		}
	}

	return boundaries
}

// isLikelyQuestionNumber 误报过滤：表头字段、年份、过短行
func isLikelyQuestionNumber(line, num string) bool {
	upper := strings.ToUpper(line)
	if strings.Contains(upper, "DATE:") ||
		strings.Contains(upper, "NAME:") ||
		strings.Contains(upper, "CLASS:") ||
		strings.Contains(upper, "TOTAL:") {
		return false
	}

	if yearRe.MatchString(num) {
		return false
	}

	if len(line) < 5 {
		return false
	}

	return true
}

func extractImagePositions(pages []Page, pageLineOffsets map[int]int) []ImagePosition {
	var positions []ImagePosition

	for _, page := range pages {
		base := pageLineOffsets[page.PageNumber]
		lines := strings.Split(page.Markdown, "\n")

		for i, line := range lines {
			for _, m := range imageRe.FindAllStringSubmatch(line, -1) {
				positions = append(positions, ImagePosition{
					ImageID:    m[2], // src 部分即图片 ID
					PageNumber: page.PageNumber,
					LineNumber: base + 1 + i, // +1 跳过页标记行
				})
			}
		}
	}

	return positions
}

func extractMetadata(firstPage string) Metadata {
	var meta Metadata

	for _, re := range totalMarksRules {
		if m := re.FindStringSubmatch(firstPage); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				meta.TotalMarks = &v
			}
			break
		}
	}

	for _, re := range subjectRules {
		if m := re.FindStringSubmatch(firstPage); m != nil {
			key := strings.ToLower(m[1])
			if canonical, ok := subjectCanonical[key]; ok {
				meta.Subject = canonical
			} else {
				meta.Subject = m[1]
			}
			break
		}
	}

	for _, re := range gradeRules {
		if m := re.FindStringSubmatch(firstPage); m != nil {
			meta.Grade = "Primary " + m[1]
			break
		}
	}

	if m := schoolRe.FindStringSubmatch(firstPage); m != nil {
		meta.School = strings.TrimSpace(m[1])
	}

	return meta
}

// sectionAtLine 每一行所处的分区：扫描全文维护"当前分区"，
// 题目归属取其起始行的分区，避免分区标题落在上一题区间造成错位
func sectionAtLine(lines []string) []string {
	sections := make([]string, len(lines))
	current := ""
	for i, line := range lines {
		if m := sectionRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = "Section " + strings.ToUpper(m[1])
		}
		sections[i] = current
	}
	return sections
}

func buildQuestions(lines []string, boundaries []boundary, imagePositions []ImagePosition) []StructuralQuestion {
	var questions []StructuralQuestion
	sections := sectionAtLine(lines)

	for i, b := range boundaries {
		endLine := len(lines)
		if i+1 < len(boundaries) {
			endLine = boundaries[i+1].startLine
		}

		rawText := strings.TrimSpace(strings.Join(lines[b.startLine:endLine], "\n"))

		var nearby []string
		for _, pos := range imagePositions {
			if pos.LineNumber >= b.startLine && pos.LineNumber < endLine {
				nearby = append(nearby, pos.ImageID)
			}
		}

		questions = append(questions, StructuralQuestion{
			QuestionNumber: b.questionNumber,
			Text:           cleanQuestionText(rawText),
			RawText:        rawText,
			PageNumber:     b.pageNumber,
			Marks:          extractMarks(rawText),
			Section:        sections[b.startLine],
			Options:        extractMCQOptions(rawText),
			NearbyImageIDs: nearby,
			StartLine:      b.startLine,
			EndLine:        endLine,
		})
	}

	return questions
}

func extractMarks(text string) *int {
	for _, re := range marksRules {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return &v
			}
		}
	}
	return nil
}

// extractMCQOptions 至少匹配到两个不同选项标签才算选择题，否则视为误报丢弃
func extractMCQOptions(text string) []MCQOption {
	var options []MCQOption
	seen := make(map[string]bool)

	for _, re := range mcqOptionRules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			label := m[1]
			if seen[label] {
				continue
			}
			seen[label] = true
			options = append(options, MCQOption{Label: label, Text: strings.TrimSpace(m[2])})
		}
	}

	if len(options) < 2 {
		return nil
	}

	sort.Slice(options, func(i, j int) bool { return options[i].Label < options[j].Label })
	return options
}

var (
	cleanImageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	cleanMarksRe      = regexp.MustCompile(`(?i)\(\d+\s*marks?\)`)
	cleanBracketsRe   = regexp.MustCompile(`\[\d+\]`)
	cleanPageMarkerRe = regexp.MustCompile(`(?m)^---\s*Page\s+\d+\s*---$`)
	cleanOptionRe     = regexp.MustCompile(`(?m)^[A-D][.)]\s+.+$`)
	cleanParenOptRe   = regexp.MustCompile(`(?m)^\([A-D]\)\s+.+$`)
	collapseBlankRe   = regexp.MustCompile(`\n{3,}`)
)

// cleanQuestionText 去掉图片引用、分数标注、页标记和选项行（选项单独存储）
func cleanQuestionText(text string) string {
	s := cleanImageRe.ReplaceAllString(text, "")
	s = cleanMarksRe.ReplaceAllString(s, "")
	s = cleanBracketsRe.ReplaceAllString(s, "")
	s = cleanPageMarkerRe.ReplaceAllString(s, "")
	s = cleanOptionRe.ReplaceAllString(s, "")
	s = cleanParenOptRe.ReplaceAllString(s, "")
	s = collapseBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ImageRefsIn 返回文本中引用的全部图片 ID（markdown 语法）
func ImageRefsIn(text string) []string {
	var ids []string
	for _, m := range imageRe.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[2])
	}
	return ids
}
