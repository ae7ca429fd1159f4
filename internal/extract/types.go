// Package extract 实现试卷提取管线中确定性的部分：
// 结构化预解析（题目边界、分数、选项、分区、图片位置）、
// 题号归一化以及基于版面位置的图片启发式分类。
// 本包不访问网络和数据库，相同输入永远产生相同输出。
package extract

// Page OCR 输出的单页，生成后不再修改
type Page struct {
	PageNumber int
	Markdown   string
	Images     []Image
}

// Image OCR 提取出的内嵌图片，坐标为页面像素坐标系
type Image struct {
	ID           string // OCR 返回的 ID，如 "img-0.jpeg"
	Data         []byte
	MimeType     string
	PageNumber   int
	TopLeftX     int
	TopLeftY     int
	BottomRightX int
	BottomRightY int
	PageWidth    int
	PageHeight   int
}

// MCQOption 选择题选项
type MCQOption struct {
	Label string
	Text  string
}

// StructuralQuestion 结构化预解析出的题目。
// 行号区间左闭右开，相邻题目区间连续且不重叠。
type StructuralQuestion struct {
	QuestionNumber string // 自由格式："1"、"2a"、"3i"
	Text           string // 清洗后的题干
	RawText        string // 原始行区间文本
	PageNumber     int
	Marks          *int
	Section        string // 结构化猜测的分区名，空串表示未识别
	Options        []MCQOption
	NearbyImageIDs []string
	StartLine      int
	EndLine        int
}

// ImagePosition 图片在拼接文档中的全局行号
type ImagePosition struct {
	ImageID    string
	PageNumber int
	LineNumber int
}

// Metadata 从首页嗅探出的试卷元信息，全部可为空
type Metadata struct {
	TotalMarks *int
	Subject    string
	Grade      string
	School     string
}

// StructuralResult 结构化预解析的完整输出
type StructuralResult struct {
	Questions      []StructuralQuestion
	Metadata       Metadata
	ImagePositions []ImagePosition
	FullDocument   string // 带页标记的拼接文档，供 LLM 上下文使用
}

// ImageClass 图片分类结果
type ImageClass string

const (
	ClassContent        ImageClass = "content"
	ClassAdministrative ImageClass = "administrative"
)

// Confidence 分类置信度
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// 分类来源，用于区分"模型判定"与"启发式兜底"
const (
	SourcePosition = "position"
	SourceVision   = "vision"
	SourceOverride = "instructions_override"
)

// Classification 单张图片的分类结论
type Classification struct {
	ImageID string
	Class   ImageClass
	Conf    Confidence
	Reason  string
	Source  string
}
