package model

type CourseCategory string

const (
	CategoryTechnology        CourseCategory = "Technology"
	CategoryProjectManagement CourseCategory = "Project Management"
	CategoryFinance           CourseCategory = "Finance"
	CategorySustainability    CourseCategory = "Sustainability"
)

var CourseCategories = []CourseCategory{
	CategoryTechnology,
	CategoryProjectManagement,
	CategoryFinance,
	CategorySustainability,
}

func (c CourseCategory) Valid() bool {
	for _, known := range CourseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Course 课程，章节按 Position 排序
// swagger:model Course
type Course struct {
	UUIDBase
	Title                  string         `gorm:"size:255;not null" json:"title"`
	Description            string         `gorm:"type:text" json:"description"`
	AgentCourseDescription string         `gorm:"type:text" json:"agentCourseDescription"`
	Image                  string         `gorm:"size:512" json:"image"`
	Fees                   float64        `gorm:"default:0" json:"fees"`
	Category               CourseCategory `gorm:"size:50;default:'Technology'" json:"category"`
	Sponsored              bool           `gorm:"default:false" json:"sponsored"`
	AgentID                string         `gorm:"size:100" json:"agentId,omitempty"`
	CourseMaterialURL      string         `gorm:"size:512" json:"courseMaterialUrl,omitempty"`
	Chapters               []Chapter      `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"chapters"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Chapter
type Chapter struct {
	UUIDBase
	CourseID    string     `gorm:"type:varchar(36);index;not null" json:"courseId"`
	Position    int        `gorm:"default:0" json:"position"`
	Title       string     `gorm:"size:255" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Videos      []Video    `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE" json:"videos"`
	Documents   []Document `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE" json:"documents"`
	Agents      []Agent    `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE" json:"agents"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// swagger:model Video
type Video struct {
	UUIDBase
	ChapterID   string `gorm:"type:varchar(36);index;not null" json:"chapterId"`
	Position    int    `gorm:"default:0" json:"position"`
	Title       string `gorm:"size:255" json:"title"`
	URL         string `gorm:"size:512" json:"url"`
	Duration    string `gorm:"size:20" json:"duration"`
	Description string `gorm:"type:text" json:"description"`
}

func (Video) TableName() string {
	return "chapter_videos"
}

// Document IsSpecial 的文档在本章普通内容全部完成后才解锁
// swagger:model Document
type Document struct {
	UUIDBase
	ChapterID   string `gorm:"type:varchar(36);index;not null" json:"chapterId"`
	Position    int    `gorm:"default:0" json:"position"`
	Title       string `gorm:"size:255" json:"title"`
	URL         string `gorm:"size:512" json:"url"`
	Description string `gorm:"type:text" json:"description"`
	IsSpecial   bool   `gorm:"default:false" json:"isSpecial"`
}

func (Document) TableName() string {
	return "chapter_documents"
}

// Agent 可启动的 AI 对话会话，没有完成状态
// swagger:model Agent
type Agent struct {
	UUIDBase
	ChapterID             string `gorm:"type:varchar(36);index;not null" json:"chapterId"`
	Position              int    `gorm:"default:0" json:"position"`
	Title                 string `gorm:"size:255" json:"title"`
	ReplicaID             string `gorm:"size:100" json:"replicaId"`
	ConversationalContext string `gorm:"type:text" json:"conversationalContext"`
	Description           string `gorm:"type:text" json:"description"`
}

func (Agent) TableName() string {
	return "chapter_agents"
}
