package model

import "time"

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID     uint      `gorm:"uniqueIndex:idx_user_course" json:"userId"`
	CourseID   string    `gorm:"type:varchar(36);uniqueIndex:idx_user_course" json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
