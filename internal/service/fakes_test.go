package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// memCourses 内存课程库，同时满足 CourseStore、CourseReader、CourseFinder
type memCourses struct {
	mu      sync.Mutex
	courses map[string]*model.Course
	order   []string
}

func newMemCourses(courses ...*model.Course) *memCourses {
	m := &memCourses{courses: map[string]*model.Course{}}
	for _, c := range courses {
		m.put(c)
	}
	return m
}

func (m *memCourses) put(c *model.Course) {
	if _, ok := m.courses[c.ID]; !ok {
		m.order = append(m.order, c.ID)
	}
	m.courses[c.ID] = c
}

func (m *memCourses) List(_ context.Context, category string) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Course
	for _, id := range m.order {
		c, ok := m.courses[id]
		if !ok {
			continue
		}
		if category == "" || string(c.Category) == category {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCourses) ListWithTree(ctx context.Context) ([]model.Course, error) {
	return m.List(ctx, "")
}

func (m *memCourses) FindByID(_ context.Context, id string) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCourses) FindByIDs(ctx context.Context, ids []string) ([]model.Course, error) {
	var out []model.Course
	for _, id := range ids {
		if c, err := m.FindByID(ctx, id); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCourses) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.courses[id]
	return ok, nil
}

func (m *memCourses) Create(_ context.Context, course *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if course.ID == "" {
		course.ID = model.NewID()
	}
	m.put(course)
	return nil
}

func (m *memCourses) ReplaceTree(_ context.Context, course *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[course.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.put(course)
	return nil
}

func (m *memCourses) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.courses, id)
	return nil
}

type memEnrollments struct {
	mu    sync.Mutex
	byKey map[string]bool
}

func newMemEnrollments() *memEnrollments {
	return &memEnrollments{byKey: map[string]bool{}}
}

func enrollKey(userID uint, courseID string) string {
	return fmt.Sprintf("%d:%s", userID, courseID)
}

func (m *memEnrollments) Enroll(_ context.Context, userID uint, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[enrollKey(userID, courseID)] = true
	return nil
}

func (m *memEnrollments) Unenroll(_ context.Context, userID uint, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, enrollKey(userID, courseID))
	return nil
}

func (m *memEnrollments) IsEnrolled(_ context.Context, userID uint, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKey[enrollKey(userID, courseID)], nil
}

func (m *memEnrollments) CourseIDs(_ context.Context, userID uint) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	prefix := fmt.Sprintf("%d:", userID)
	for key := range m.byKey {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, key[len(prefix):])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memCompletions 可注入失败和回调的完成状态存储
type memCompletions struct {
	mu        sync.Mutex
	items     map[string]map[string]bool
	setErr    error
	readErr   error
	onSet     func(itemID string, completed bool)
	setCalls  int
	readCalls int
}

func newMemCompletions() *memCompletions {
	return &memCompletions{items: map[string]map[string]bool{}}
}

func completionKey(userID uint, courseID string, kind model.ContentKind) string {
	return fmt.Sprintf("%d:%s:%s", userID, courseID, kind)
}

func (m *memCompletions) Completed(_ context.Context, userID uint, courseID string, kind model.ContentKind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.readErr != nil {
		return nil, m.readErr
	}
	var ids []string
	for id, done := range m.items[completionKey(userID, courseID, kind)] {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memCompletions) SetCompleted(_ context.Context, userID uint, courseID, itemID string, kind model.ContentKind, completed bool) error {
	m.mu.Lock()
	m.setCalls++
	hook := m.onSet
	if m.setErr != nil {
		err := m.setErr
		m.mu.Unlock()
		return err
	}
	key := completionKey(userID, courseID, kind)
	if m.items[key] == nil {
		m.items[key] = map[string]bool{}
	}
	if completed {
		m.items[key][itemID] = true
	} else {
		delete(m.items[key], itemID)
	}
	m.mu.Unlock()

	if hook != nil {
		hook(itemID, completed)
	}
	return nil
}

func (m *memCompletions) has(userID uint, courseID string, kind model.ContentKind, itemID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[completionKey(userID, courseID, kind)][itemID]
}

// bulkCompletions 在 memCompletions 上提供批量读取
type bulkCompletions struct {
	*memCompletions
	bulkReads int
}

func (b *bulkCompletions) CompletedByCourse(_ context.Context, userID uint) (map[string][]model.ContentCompletion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bulkReads++
	if b.readErr != nil {
		return nil, b.readErr
	}
	result := map[string][]model.ContentCompletion{}
	for key, items := range b.items {
		parts := strings.SplitN(key, ":", 3)
		if parts[0] != strconv.FormatUint(uint64(userID), 10) {
			continue
		}
		for id, done := range items {
			if done {
				result[parts[1]] = append(result[parts[1]], model.ContentCompletion{
					UserID: userID, CourseID: parts[1], ItemID: id, Kind: model.ContentKind(parts[2]), Completed: true,
				})
			}
		}
	}
	return result, nil
}

func withID[T any](v T, id string, set func(*T, string)) T {
	set(&v, id)
	return v
}

// sampleCourse 两章：第一章 智能体+普通文档+特殊文档+视频，第二章 一个视频
func sampleCourse() *model.Course {
	c := &model.Course{Title: "Cloud", Description: "desc", AgentCourseDescription: "agent desc", Category: model.CategoryTechnology}
	c.ID = "course-1"

	ch1 := model.Chapter{Title: "Intro", CourseID: c.ID}
	ch1.ID = "ch-1"
	ch1.Agents = []model.Agent{withID(model.Agent{Title: "Tutor", ReplicaID: "r-1", ConversationalContext: "ctx"}, "a1", func(a *model.Agent, id string) { a.ID = id })}
	ch1.Documents = []model.Document{
		withID(model.Document{Title: "Notes"}, "d1", func(d *model.Document, id string) { d.ID = id }),
		withID(model.Document{Title: "Certificate", IsSpecial: true}, "s1", func(d *model.Document, id string) { d.ID = id }),
	}
	ch1.Videos = []model.Video{withID(model.Video{Title: "Intro video"}, "v1", func(v *model.Video, id string) { v.ID = id })}

	ch2 := model.Chapter{Title: "Deploy", CourseID: c.ID}
	ch2.ID = "ch-2"
	ch2.Videos = []model.Video{withID(model.Video{Title: "Deploy video"}, "v2", func(v *model.Video, id string) { v.ID = id })}

	c.Chapters = []model.Chapter{ch1, ch2}
	return c
}
