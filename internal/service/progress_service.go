package service

import (
	"context"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/progress"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseReader interface {
	FindByID(ctx context.Context, id string) (*model.Course, error)
	ListWithTree(ctx context.Context) ([]model.Course, error)
}

type EnrollmentReader interface {
	IsEnrolled(ctx context.Context, userID uint, courseID string) (bool, error)
	CourseIDs(ctx context.Context, userID uint) ([]string, error)
}

// BulkCompletionReader 一次读取用户在所有课程中的完成记录
type BulkCompletionReader interface {
	CompletedByCourse(ctx context.Context, userID uint) (map[string][]model.ContentCompletion, error)
}

type ProgressService struct {
	courses     CourseReader
	enrollments EnrollmentReader
	primary     CompletionStore
	mirror      CompletionStore
	store       *ReconciledCompletionStore
	locks       *keyedMutex
}

// NewProgressService mirror 为空时只使用数据库
func NewProgressService(courses CourseReader, enrollments EnrollmentReader, primary, mirror CompletionStore) *ProgressService {
	return &ProgressService{
		courses:     courses,
		enrollments: enrollments,
		primary:     primary,
		mirror:      mirror,
		store:       NewReconciledCompletionStore(primary, mirror),
		locks:       newKeyedMutex(),
	}
}

// ChapterView 章节及其有序内容列表
type ChapterView struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Index       int                    `json:"index"`
	Items       []progress.ContentItem `json:"items"`
	IsComplete  bool                   `json:"isComplete"`
}

// CourseProgressView 报名课程详情页的数据
type CourseProgressView struct {
	Course               *model.Course              `json:"course"`
	Summary              progress.Summary           `json:"summary"`
	Chapters             []ChapterView              `json:"chapters"`
	SpecialDocuments     []progress.SpecialDocument `json:"specialDocuments"`
	Documents            []progress.DocumentStatus  `json:"documents"`
	CompletedVideoIDs    []string                   `json:"completedVideoIds"`
	CompletedDocumentIDs []string                   `json:"completedDocumentIds"`
}

// CourseCard 目录页卡片，Progress 只对已报名课程有意义
type CourseCard struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Image        string               `json:"image"`
	Fees         float64              `json:"fees"`
	Category     model.CourseCategory `json:"category"`
	Sponsored    bool                 `json:"sponsored"`
	ChapterCount int                  `json:"chapterCount"`
	IsEnrolled   bool                 `json:"isEnrolled"`
	Progress     int                  `json:"progress"`
}

type ToggleState string

const (
	TogglePending    ToggleState = "pending"
	ToggleCommitted  ToggleState = "committed"
	ToggleRolledBack ToggleState = "rolled_back"
)

type ToggleResult struct {
	ItemID    string            `json:"itemId"`
	Kind      model.ContentKind `json:"kind"`
	Completed bool              `json:"completed"`
	State     ToggleState       `json:"state"`
	Summary   progress.Summary  `json:"summary"`
}

// completionChange 一次切换的状态机：pending -> committed | rolled_back
type completionChange struct {
	userID       uint
	courseID     string
	itemID       string
	kind         model.ContentKind
	from, to     bool
	cacheWritten bool
	state        ToggleState
}

func (s *ProgressService) loadCourse(ctx context.Context, courseID string) (*model.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}

func (s *ProgressService) loadEnrolledCourse(ctx context.Context, userID uint, courseID string) (*model.Course, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}
	return course, nil
}

func (s *ProgressService) loadCompletion(ctx context.Context, userID uint, courseID string) (progress.Completion, []string, []string, error) {
	videoIDs, err := s.store.Completed(ctx, userID, courseID, model.KindVideo)
	if err != nil {
		return progress.Completion{}, nil, nil, fmt.Errorf("load video progress: %w", err)
	}
	documentIDs, err := s.store.Completed(ctx, userID, courseID, model.KindDocument)
	if err != nil {
		return progress.Completion{}, nil, nil, fmt.Errorf("load document progress: %w", err)
	}
	return progress.NewCompletion(videoIDs, documentIDs), videoIDs, documentIDs, nil
}

func (s *ProgressService) GetCourseProgress(ctx context.Context, userID uint, courseID string) (*CourseProgressView, error) {
	course, err := s.loadEnrolledCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	done, videoIDs, documentIDs, err := s.loadCompletion(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	return buildProgressView(course, done, videoIDs, documentIDs), nil
}

func buildProgressView(course *model.Course, done progress.Completion, videoIDs, documentIDs []string) *CourseProgressView {
	videoSet, documentSet := progress.CourseItemIDs(course.Chapters)
	view := &CourseProgressView{
		Course:           course,
		Summary:          progress.Calculate(course.Chapters, done),
		Chapters:         make([]ChapterView, 0, len(course.Chapters)),
		SpecialDocuments: progress.SpecialDocuments(course.Chapters, done),
		Documents:        progress.AllDocuments(course.Chapters, done),
		CompletedVideoIDs: lo.Filter(videoIDs, func(id string, _ int) bool {
			_, ok := videoSet[id]
			return ok
		}),
		CompletedDocumentIDs: lo.Filter(documentIDs, func(id string, _ int) bool {
			_, ok := documentSet[id]
			return ok
		}),
	}

	for i, ch := range course.Chapters {
		view.Chapters = append(view.Chapters, ChapterView{
			ID:          ch.ID,
			Title:       ch.Title,
			Description: ch.Description,
			Index:       i,
			Items:       progress.MarkCompleted(progress.ContentItems(i, ch), done),
			IsComplete:  progress.IsChapterComplete(ch, done),
		})
	}
	return view
}

func (s *ProgressService) ToggleVideo(ctx context.Context, userID uint, courseID, videoID string) (*ToggleResult, error) {
	return s.toggle(ctx, userID, courseID, videoID, model.KindVideo)
}

// ToggleDocument 特殊文档也可以切换，但不计入进度
func (s *ProgressService) ToggleDocument(ctx context.Context, userID uint, courseID, documentID string) (*ToggleResult, error) {
	return s.toggle(ctx, userID, courseID, documentID, model.KindDocument)
}

func (s *ProgressService) toggle(ctx context.Context, userID uint, courseID, itemID string, kind model.ContentKind) (result *ToggleResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "progress.toggle",
		attribute.String("course.id", courseID),
		attribute.String("item.id", itemID),
		attribute.String("item.kind", string(kind)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	// 同一用户同一课程的切换串行执行，避免旧请求覆盖新结果
	unlock := s.locks.Lock(fmt.Sprintf("%d:%s", userID, courseID))
	defer unlock()

	if ctx.Err() != nil {
		return nil, util.ErrRequestCancelled
	}

	course, err := s.loadEnrolledCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	videoSet, documentSet := progress.CourseItemIDs(course.Chapters)
	owned := videoSet
	if kind == model.KindDocument {
		owned = documentSet
	}
	if _, ok := owned[itemID]; !ok {
		return nil, util.ErrContentNotFound
	}

	done, _, _, err := s.loadCompletion(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	current := done.VideoDone(itemID)
	if kind == model.KindDocument {
		current = done.DocumentDone(itemID)
	}

	change := &completionChange{
		userID:   userID,
		courseID: courseID,
		itemID:   itemID,
		kind:     kind,
		from:     current,
		to:       !current,
		state:    TogglePending,
	}
	err = s.apply(ctx, change)
	monitoring.ProgressToggles.WithLabelValues(string(kind), string(change.state)).Inc()
	if err != nil {
		return nil, err
	}

	set := done.Videos
	if kind == model.KindDocument {
		set = done.Documents
	}
	if change.to {
		set[itemID] = struct{}{}
	} else {
		delete(set, itemID)
	}

	return &ToggleResult{
		ItemID:    itemID,
		Kind:      kind,
		Completed: change.to,
		State:     change.state,
		Summary:   progress.Calculate(course.Chapters, done),
	}, nil
}

// apply 先写缓存再提交数据库，任何一步失败或请求被取消都恢复缓存
func (s *ProgressService) apply(ctx context.Context, c *completionChange) error {
	if s.mirror != nil {
		if err := s.mirror.SetCompleted(ctx, c.userID, c.courseID, c.itemID, c.kind, c.to); err != nil {
			logger.Log.Warn("Failed to write progress cache, committing to database only",
				zap.String("itemId", c.itemID), zap.Error(err))
		} else {
			c.cacheWritten = true
		}
	}

	if ctx.Err() != nil {
		s.rollback(ctx, c)
		return util.ErrRequestCancelled
	}

	if err := s.primary.SetCompleted(ctx, c.userID, c.courseID, c.itemID, c.kind, c.to); err != nil {
		s.rollback(ctx, c)
		if ctx.Err() != nil {
			return util.ErrRequestCancelled
		}
		return fmt.Errorf("commit completion: %w", err)
	}

	c.state = ToggleCommitted
	return nil
}

func (s *ProgressService) rollback(ctx context.Context, c *completionChange) {
	c.state = ToggleRolledBack
	if !c.cacheWritten {
		return
	}
	// 请求可能已被取消，恢复操作不受其影响
	restoreCtx := context.WithoutCancel(ctx)
	if err := s.mirror.SetCompleted(restoreCtx, c.userID, c.courseID, c.itemID, c.kind, c.from); err != nil {
		logger.Log.Error("Failed to restore progress cache",
			zap.Uint("userId", c.userID), zap.String("itemId", c.itemID), zap.Error(err))
	}
}

// CourseCards 目录页：所有课程及当前用户的报名状态和进度
func (s *ProgressService) CourseCards(ctx context.Context, userID uint) ([]CourseCard, error) {
	courses, err := s.courses.ListWithTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	enrolledIDs, err := s.enrollments.CourseIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	enrolled := lo.SliceToMap(enrolledIDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	// 数据库支持批量读取时只查一次，否则逐门课程读取
	var byCourse map[string][]model.ContentCompletion
	if bulk, ok := s.primary.(BulkCompletionReader); ok && len(enrolled) > 0 {
		byCourse, err = bulk.CompletedByCourse(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
	}

	cards := make([]CourseCard, 0, len(courses))
	for _, course := range courses {
		card := CourseCard{
			ID:           course.ID,
			Title:        course.Title,
			Description:  course.Description,
			Image:        course.Image,
			Fees:         course.Fees,
			Category:     course.Category,
			Sponsored:    course.Sponsored,
			ChapterCount: len(course.Chapters),
		}
		if _, ok := enrolled[course.ID]; ok {
			card.IsEnrolled = true
			var done progress.Completion
			if byCourse != nil {
				done = completionFromRecords(byCourse[course.ID])
			} else {
				done, _, _, err = s.loadCompletion(ctx, userID, course.ID)
				if err != nil {
					return nil, err
				}
			}
			card.Progress = progress.Calculate(course.Chapters, done).Percentage
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func completionFromRecords(records []model.ContentCompletion) progress.Completion {
	var videoIDs, documentIDs []string
	for _, r := range records {
		switch r.Kind {
		case model.KindVideo:
			videoIDs = append(videoIDs, r.ItemID)
		case model.KindDocument:
			documentIDs = append(documentIDs, r.ItemID)
		}
	}
	return progress.NewCompletion(videoIDs, documentIDs)
}
