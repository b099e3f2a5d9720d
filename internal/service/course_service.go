package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseStore interface {
	List(ctx context.Context, category string) ([]model.Course, error)
	FindByID(ctx context.Context, id string) (*model.Course, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Course, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, course *model.Course) error
	ReplaceTree(ctx context.Context, course *model.Course) error
	Delete(ctx context.Context, id string) error
}

type EnrollmentStore interface {
	Enroll(ctx context.Context, userID uint, courseID string) error
	Unenroll(ctx context.Context, userID uint, courseID string) error
	IsEnrolled(ctx context.Context, userID uint, courseID string) (bool, error)
	CourseIDs(ctx context.Context, userID uint) ([]string, error)
}

type CourseUploader interface {
	UploadCourseImage(ctx context.Context, file FileInput, courseID string) (*UploadResult, error)
	UploadCourseMaterial(ctx context.Context, file FileInput, courseID string) (*UploadResult, error)
	UploadChapterVideo(ctx context.Context, file FileInput, courseID, chapterID string) (*UploadResult, error)
}

type VideoInput struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Duration    string `json:"duration" yaml:"duration"`
	Description string `json:"description" yaml:"description"`
}

type DocumentInput struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
	IsSpecial   bool   `json:"isSpecial" yaml:"isSpecial"`
}

type AgentInput struct {
	ID                    string `json:"id" yaml:"id"`
	Title                 string `json:"title" yaml:"title"`
	ReplicaID             string `json:"replicaId" yaml:"replicaId"`
	ConversationalContext string `json:"conversationalContext" yaml:"conversationalContext"`
	Description           string `json:"description" yaml:"description"`
}

type ChapterInput struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Videos      []VideoInput    `json:"videos" yaml:"videos"`
	Documents   []DocumentInput `json:"documents" yaml:"documents"`
	Agents      []AgentInput    `json:"agents" yaml:"agents"`
}

// CourseInput 管理端编辑表单
type CourseInput struct {
	Title                  string         `json:"title" yaml:"title"`
	Description            string         `json:"description" yaml:"description"`
	AgentCourseDescription string         `json:"agentCourseDescription" yaml:"agentCourseDescription"`
	Image                  string         `json:"image" yaml:"image"`
	Fees                   float64        `json:"fees" yaml:"fees"`
	Category               string         `json:"category" yaml:"category"`
	Sponsored              bool           `json:"sponsored" yaml:"sponsored"`
	AgentID                string         `json:"agentId" yaml:"agentId"`
	CourseMaterialURL      string         `json:"courseMaterialUrl" yaml:"courseMaterialUrl"`
	Chapters               []ChapterInput `json:"chapters" yaml:"chapters"`
}

// CourseFiles 随表单上传的文件，视频和文档按 FileKey 对应到章节内的位置
type CourseFiles struct {
	Image     *FileInput
	Material  *FileInput
	Videos    map[string]FileInput
	Documents map[string]FileInput
}

func FileKey(chapterIndex, itemIndex int) string {
	return fmt.Sprintf("%d-%d", chapterIndex, itemIndex)
}

type CourseService struct {
	courses     CourseStore
	enrollments EnrollmentStore
	uploader    CourseUploader
}

func NewCourseService(courses CourseStore, enrollments EnrollmentStore, uploader CourseUploader) *CourseService {
	return &CourseService{courses: courses, enrollments: enrollments, uploader: uploader}
}

func notFoundAsCourse(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrCourseNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (s *CourseService) ListCourses(ctx context.Context, category string) ([]model.Course, error) {
	category = strings.TrimSpace(category)
	if category != "" && !model.CourseCategory(category).Valid() {
		return nil, util.NewValidationError("Invalid course category: %s", category)
	}
	courses, err := s.courses.List(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *CourseService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAsCourse(err, "load course")
	}
	return course, nil
}

func validateCourseInput(input *CourseInput, files CourseFiles) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.AgentCourseDescription = strings.TrimSpace(input.AgentCourseDescription)
	input.Image = strings.TrimSpace(input.Image)

	if input.Title == "" || input.Description == "" || input.AgentCourseDescription == "" {
		return util.NewValidationError("Please fill in all required fields")
	}
	if input.Image == "" && files.Image == nil {
		return util.NewValidationError("Please provide a course image")
	}
	if input.Fees < 0 {
		return util.NewValidationError("Course fees cannot be negative")
	}
	if input.Category == "" {
		input.Category = string(model.CategoryTechnology)
	}
	if !model.CourseCategory(input.Category).Valid() {
		return util.NewValidationError("Invalid course category: %s", input.Category)
	}
	return nil
}

// keepID 只沿用本课程已有的 ID，保证完成记录在编辑后仍然有效
func keepID(id string, known map[string]struct{}) string {
	if _, ok := known[id]; ok && id != "" {
		delete(known, id)
		return id
	}
	return model.NewID()
}

func existingIDs(course *model.Course) map[string]struct{} {
	ids := make(map[string]struct{})
	if course == nil {
		return ids
	}
	for _, ch := range course.Chapters {
		ids[ch.ID] = struct{}{}
		for _, v := range ch.Videos {
			ids[v.ID] = struct{}{}
		}
		for _, d := range ch.Documents {
			ids[d.ID] = struct{}{}
		}
		for _, a := range ch.Agents {
			ids[a.ID] = struct{}{}
		}
	}
	return ids
}

func buildCourse(courseID string, input CourseInput, existing *model.Course) *model.Course {
	known := existingIDs(existing)
	course := &model.Course{
		Title:                  input.Title,
		Description:            input.Description,
		AgentCourseDescription: input.AgentCourseDescription,
		Image:                  input.Image,
		Fees:                   input.Fees,
		Category:               model.CourseCategory(input.Category),
		Sponsored:              input.Sponsored,
		AgentID:                strings.TrimSpace(input.AgentID),
		CourseMaterialURL:      input.CourseMaterialURL,
	}
	course.ID = courseID

	for ci, chIn := range input.Chapters {
		ch := model.Chapter{
			CourseID:    courseID,
			Position:    ci,
			Title:       chIn.Title,
			Description: chIn.Description,
		}
		ch.ID = keepID(chIn.ID, known)

		for vi, v := range chIn.Videos {
			video := model.Video{ChapterID: ch.ID, Position: vi, Title: v.Title, URL: v.URL, Duration: v.Duration, Description: v.Description}
			video.ID = keepID(v.ID, known)
			ch.Videos = append(ch.Videos, video)
		}
		for di, d := range chIn.Documents {
			doc := model.Document{ChapterID: ch.ID, Position: di, Title: d.Title, URL: d.URL, Description: d.Description, IsSpecial: d.IsSpecial}
			doc.ID = keepID(d.ID, known)
			ch.Documents = append(ch.Documents, doc)
		}
		for ai, a := range chIn.Agents {
			agent := model.Agent{
				ChapterID:             ch.ID,
				Position:              ai,
				Title:                 a.Title,
				ReplicaID:             strings.TrimSpace(a.ReplicaID),
				ConversationalContext: a.ConversationalContext,
				Description:           a.Description,
			}
			agent.ID = keepID(a.ID, known)
			ch.Agents = append(ch.Agents, agent)
		}
		course.Chapters = append(course.Chapters, ch)
	}
	return course
}

// uploadFiles 每个文件独立上传，出错时已上传的文件不回滚
func (s *CourseService) uploadFiles(ctx context.Context, course *model.Course, files CourseFiles) error {
	if files.Image != nil {
		res, err := s.uploader.UploadCourseImage(ctx, *files.Image, course.ID)
		if err != nil {
			return err
		}
		course.Image = res.URL
	}
	if files.Material != nil {
		res, err := s.uploader.UploadCourseMaterial(ctx, *files.Material, course.ID)
		if err != nil {
			return err
		}
		course.CourseMaterialURL = res.URL
	}

	for ci := range course.Chapters {
		ch := &course.Chapters[ci]
		for vi := range ch.Videos {
			file, ok := files.Videos[FileKey(ci, vi)]
			if !ok {
				continue
			}
			res, err := s.uploader.UploadChapterVideo(ctx, file, course.ID, ch.ID)
			if err != nil {
				return err
			}
			ch.Videos[vi].URL = res.URL
			if strings.TrimSpace(ch.Videos[vi].Duration) == "" {
				ch.Videos[vi].Duration = res.Duration
			}
		}
		for di := range ch.Documents {
			file, ok := files.Documents[FileKey(ci, di)]
			if !ok {
				continue
			}
			res, err := s.uploader.UploadCourseMaterial(ctx, file, course.ID)
			if err != nil {
				return err
			}
			ch.Documents[di].URL = res.URL
		}
	}
	return nil
}

func (s *CourseService) CreateCourse(ctx context.Context, input CourseInput, files CourseFiles) (*model.Course, error) {
	if err := validateCourseInput(&input, files); err != nil {
		return nil, err
	}

	course := buildCourse(model.NewID(), input, nil)
	if err := s.uploadFiles(ctx, course, files); err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	logger.Log.Info("Course created", zap.String("courseId", course.ID), zap.String("title", course.Title))
	return course, nil
}

// UpdateCourse 上传新文件后整体替换章节树
func (s *CourseService) UpdateCourse(ctx context.Context, courseID string, input CourseInput, files CourseFiles) (*model.Course, error) {
	existing, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundAsCourse(err, "load course")
	}
	if err := validateCourseInput(&input, files); err != nil {
		return nil, err
	}

	course := buildCourse(existing.ID, input, existing)
	if err := s.uploadFiles(ctx, course, files); err != nil {
		return nil, err
	}
	if err := s.courses.ReplaceTree(ctx, course); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}

	logger.Log.Info("Course updated", zap.String("courseId", course.ID), zap.Int("chapters", len(course.Chapters)))
	return s.GetCourse(ctx, course.ID)
}

func (s *CourseService) DeleteCourse(ctx context.Context, courseID string) error {
	if err := s.courses.Delete(ctx, courseID); err != nil {
		return notFoundAsCourse(err, "delete course")
	}
	logger.Log.Info("Course deleted", zap.String("courseId", courseID))
	return nil
}

func (s *CourseService) ensureCourse(ctx context.Context, courseID string) error {
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return util.ErrCourseNotFound
	}
	return nil
}

func (s *CourseService) Enroll(ctx context.Context, userID uint, courseID string) error {
	if err := s.ensureCourse(ctx, courseID); err != nil {
		return err
	}
	if err := s.enrollments.Enroll(ctx, userID, courseID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

func (s *CourseService) Unenroll(ctx context.Context, userID uint, courseID string) error {
	if err := s.ensureCourse(ctx, courseID); err != nil {
		return err
	}
	if err := s.enrollments.Unenroll(ctx, userID, courseID); err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	return nil
}

func (s *CourseService) ListEnrolled(ctx context.Context, userID uint) ([]model.Course, error) {
	ids, err := s.enrollments.CourseIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	courses, err := s.courses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load enrolled courses: %w", err)
	}
	return courses, nil
}
