package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}

// withTree 预加载完整的章节树，每一层都按 position 排序
func withTree(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Chapters", byPosition).
		Preload("Chapters.Videos", byPosition).
		Preload("Chapters.Documents", byPosition).
		Preload("Chapters.Agents", byPosition)
}

// List 课程列表不加载章节内容，category 为空表示全部
func (r *CourseRepository) List(ctx context.Context, category string) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.WithContext(ctx).Model(&model.Course{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("created_at DESC").Find(&courses).Error
	return courses, err
}

// ListWithTree 用于目录页计算进度
func (r *CourseRepository) ListWithTree(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := withTree(r.DB.WithContext(ctx)).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := withTree(r.DB.WithContext(ctx)).Where("id = ?", id).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Course{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Create 连同章节树一起写入
func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

// ReplaceTree 更新课程字段并整体替换章节树，在一个事务内完成
func (r *CourseRepository) ReplaceTree(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
			"title":                    course.Title,
			"description":              course.Description,
			"agent_course_description": course.AgentCourseDescription,
			"image":                    course.Image,
			"fees":                     course.Fees,
			"category":                 course.Category,
			"sponsored":                course.Sponsored,
			"agent_id":                 course.AgentID,
			"course_material_url":      course.CourseMaterialURL,
		}).Error; err != nil {
			return err
		}

		if err := deleteChapters(tx, course.ID); err != nil {
			return err
		}

		for i := range course.Chapters {
			course.Chapters[i].CourseID = course.ID
		}
		if len(course.Chapters) == 0 {
			return nil
		}
		return tx.Create(&course.Chapters).Error
	})
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteChapters(tx, id); err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Enrollment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.ContentCompletion{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Course{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// deleteChapters 显式删除子表，不依赖数据库外键级联
func deleteChapters(tx *gorm.DB, courseID string) error {
	chapterIDs := tx.Model(&model.Chapter{}).Select("id").Where("course_id = ?", courseID)
	if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&model.Video{}).Error; err != nil {
		return err
	}
	if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&model.Document{}).Error; err != nil {
		return err
	}
	if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&model.Agent{}).Error; err != nil {
		return err
	}
	return tx.Where("course_id = ?", courseID).Delete(&model.Chapter{}).Error
}
