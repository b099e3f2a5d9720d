package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionRepository 视频与文档完成状态的持久化存储
type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

// Completed 返回用户在课程中已完成的某类内容 ID
func (r *CompletionRepository) Completed(ctx context.Context, userID uint, courseID string, kind model.ContentKind) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.ContentCompletion{}).
		Where("user_id = ? AND course_id = ? AND kind = ? AND completed = ?", userID, courseID, kind, true).
		Order("completed_at ASC").
		Pluck("item_id", &ids).Error
	return ids, err
}

// SetCompleted 按唯一索引 upsert
func (r *CompletionRepository) SetCompleted(ctx context.Context, userID uint, courseID, itemID string, kind model.ContentKind, completed bool) error {
	var completedAt *time.Time
	if completed {
		now := time.Now()
		completedAt = &now
	}

	record := &model.ContentCompletion{
		UserID:      userID,
		CourseID:    courseID,
		ItemID:      itemID,
		Kind:        kind,
		Completed:   completed,
		CompletedAt: completedAt,
	}

	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}, {Name: "item_id"}, {Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"completed":    completed,
			"completed_at": completedAt,
			"updated_at":   time.Now(),
			"deleted_at":   nil,
		}),
	}).Create(record).Error
}

// CompletedByCourse 一次取出用户所有课程的完成记录，按课程分组，课程目录页用它计算进度
func (r *CompletionRepository) CompletedByCourse(ctx context.Context, userID uint) (map[string][]model.ContentCompletion, error) {
	var rows []model.ContentCompletion
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string][]model.ContentCompletion)
	for _, row := range rows {
		result[row.CourseID] = append(result[row.CourseID], row)
	}
	return result, nil
}
