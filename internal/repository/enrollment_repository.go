package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// Enroll 已报名时不报错
func (r *EnrollmentRepository) Enroll(ctx context.Context, userID uint, courseID string) error {
	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(enrollment).Error
}

func (r *EnrollmentRepository) Unenroll(ctx context.Context, userID uint, courseID string) error {
	return r.DB.WithContext(ctx).
		Unscoped().
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.Enrollment{}).Error
}

func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, userID uint, courseID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) CourseIDs(ctx context.Context, userID uint) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Pluck("course_id", &ids).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return ids, err
}
