package model

// ExamStatus 试卷处理状态，处理失败时 ErrorMessage 保存失败原因
type ExamStatus string

const (
	ExamStatusPending    ExamStatus = "pending"
	ExamStatusProcessing ExamStatus = "processing"
	ExamStatusCompleted  ExamStatus = "completed"
	ExamStatusFailed     ExamStatus = "failed"
)

// QuestionType 题目类型，由语义增强阶段判定
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeFillBlank   QuestionType = "fill_blank"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeLongAnswer  QuestionType = "long_answer"
)

// swagger:model Exam
type Exam struct {
	UUIDBase
	UserID              uint       `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Filename            string     `gorm:"size:255;not null" json:"filename"`
	PdfKey              string     `gorm:"size:512" json:"pdfKey"` // 对象存储中的 PDF key
	FileHash            string     `gorm:"size:64;index" json:"-"` // SHA-256，用于重复上传检测
	Subject             string     `gorm:"size:50" json:"subject"`
	Grade               string     `gorm:"size:50" json:"grade"`
	SchoolName          string     `gorm:"size:255" json:"schoolName"`
	TotalMarks          *int       `json:"totalMarks"`
	Status              ExamStatus `gorm:"type:enum('pending','processing','completed','failed');default:'pending';index" json:"status"`
	ErrorMessage        string     `gorm:"type:text" json:"errorMessage,omitempty"`
	HasAnswerKey        bool       `gorm:"default:false" json:"hasAnswerKey"`
	AnswerKeyConfidence string     `gorm:"size:10" json:"answerKeyConfidence,omitempty"` // high / medium / low
	RawOcrResult        string     `gorm:"type:longtext" json:"-"`                       // 原始 OCR JSON，排障用

	Sections []ExamSection `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Images   []ExamImage   `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamSection 试卷分区。Name 为空字符串表示未分区题目的默认分区。
// swagger:model ExamSection
type ExamSection struct {
	UUIDBase
	ExamID       string `gorm:"index;type:varchar(36);not null" json:"examId"`
	Name         string `gorm:"size:100" json:"name"`
	Instructions string `gorm:"type:text" json:"instructions"` // 共享上下文：词库、阅读段落、表格等
	OrderIndex   int    `gorm:"not null;default:0" json:"orderIndex"`

	Questions []Question `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (ExamSection) TableName() string {
	return "exam_sections"
}

// swagger:model Question
type Question struct {
	UUIDBase
	ExamID         string       `gorm:"index;type:varchar(36);not null" json:"examId"`
	SectionID      string       `gorm:"index;type:varchar(36);not null" json:"sectionId"`
	QuestionNumber string       `gorm:"size:20;not null" json:"questionNumber"` // 自由格式："2a"、"3(i)"
	QuestionText   string       `gorm:"type:text;not null" json:"questionText"`
	QuestionType   QuestionType `gorm:"type:enum('mcq','fill_blank','short_answer','long_answer');not null" json:"questionType"`
	PageNumber     int          `gorm:"not null" json:"pageNumber"`
	Marks          *int         `json:"marks"`
	// ExpectedAnswer 对所有题型统一存储正确答案；选择题存正确选项的标签（如 "B"）
	ExpectedAnswer string `gorm:"type:text" json:"expectedAnswer,omitempty"`
	OrderIndex     int    `gorm:"not null" json:"orderIndex"`

	Options []AnswerOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
	Images  []ExamImage    `gorm:"foreignKey:QuestionID" json:"images,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model AnswerOption
type AnswerOption struct {
	UUIDBase
	QuestionID  string `gorm:"index;type:varchar(36);not null" json:"questionId"`
	OptionLabel string `gorm:"size:10;not null" json:"optionLabel"`
	OptionText  string `gorm:"type:text;not null" json:"optionText"`
	OrderIndex  int    `gorm:"not null" json:"orderIndex"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}

// ExamImage 提取出的内容图片。QuestionID 为空表示试卷级图片（未被任何题目认领）。
// swagger:model ExamImage
type ExamImage struct {
	UUIDBase
	ExamID     string  `gorm:"index;type:varchar(36);not null" json:"examId"`
	QuestionID *string `gorm:"index;type:varchar(36)" json:"questionId"`
	StorageKey string  `gorm:"size:512;not null" json:"-"` // images/{examId}/{imageId}.{ext}
	SourceID   string  `gorm:"size:100" json:"sourceId"`   // OCR 返回的图片 ID，如 "img-0.jpeg"
	ImageType  string  `gorm:"size:30" json:"imageType"`   // question_diagram / exam_content
	OrderIndex int     `gorm:"not null;default:0" json:"orderIndex"`
}

func (ExamImage) TableName() string {
	return "exam_images"
}
