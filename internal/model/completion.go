package model

import "time"

type ContentKind string

const (
	KindAgent    ContentKind = "agent"
	KindDocument ContentKind = "document"
	KindVideo    ContentKind = "video"
)

// Trackable 只有视频和文档有完成状态
func (k ContentKind) Trackable() bool {
	return k == KindVideo || k == KindDocument
}

// ContentCompletion 记录用户在某门课程中对视频/文档的完成状态
// swagger:model ContentCompletion
type ContentCompletion struct {
	BaseModel
	UserID      uint        `gorm:"uniqueIndex:idx_user_course_item" json:"userId"`
	CourseID    string      `gorm:"type:varchar(36);uniqueIndex:idx_user_course_item" json:"courseId"`
	ItemID      string      `gorm:"type:varchar(36);uniqueIndex:idx_user_course_item" json:"itemId"`
	Kind        ContentKind `gorm:"size:20;uniqueIndex:idx_user_course_item" json:"kind"`
	Completed   bool        `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

func (ContentCompletion) TableName() string {
	return "content_completions"
}
