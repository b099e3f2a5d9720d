package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type SeedUser struct {
	Name     string         `yaml:"name"`
	Email    string         `yaml:"email"`
	Password string         `yaml:"password"`
	Role     model.UserRole `yaml:"role"`
}

// SeedData 初始化数据文件格式
type SeedData struct {
	Users   []SeedUser    `yaml:"users"`
	Courses []CourseInput `yaml:"courses"`
	Quizzes []QuizInput   `yaml:"quizzes"`
}

type SeedReport struct {
	Users   int
	Courses int
	Quizzes int
}

// SeedService 从 yaml 文件导入用户、课程、测验，已存在的同名记录会跳过
type SeedService struct {
	auth    *AuthService
	courses *CourseService
	quizzes *QuizService
}

func NewSeedService(auth *AuthService, courses *CourseService, quizzes *QuizService) *SeedService {
	return &SeedService{auth: auth, courses: courses, quizzes: quizzes}
}

func ParseSeed(r io.Reader) (*SeedData, error) {
	var data SeedData
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &data, nil
}

func (s *SeedService) SeedFile(ctx context.Context, path string) (*SeedReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := ParseSeed(f)
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, data)
}

func (s *SeedService) Seed(ctx context.Context, data *SeedData) (*SeedReport, error) {
	report := &SeedReport{}

	for _, u := range data.Users {
		user := &model.User{Name: u.Name, Email: u.Email, Password: u.Password, Role: u.Role}
		err := s.auth.Register(ctx, user)
		if errors.Is(err, util.ErrEmailRegistered) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		report.Users++
	}

	existingCourses, err := s.courses.ListCourses(ctx, "")
	if err != nil {
		return report, err
	}
	courseTitles := make(map[string]struct{}, len(existingCourses))
	for _, c := range existingCourses {
		courseTitles[strings.ToLower(c.Title)] = struct{}{}
	}
	for _, input := range data.Courses {
		if _, ok := courseTitles[strings.ToLower(strings.TrimSpace(input.Title))]; ok {
			continue
		}
		if _, err := s.courses.CreateCourse(ctx, input, CourseFiles{}); err != nil {
			return report, fmt.Errorf("seed course %q: %w", input.Title, err)
		}
		report.Courses++
	}

	existingQuizzes, err := s.quizzes.ListQuizzes(ctx, "")
	if err != nil {
		return report, err
	}
	quizTitles := make(map[string]struct{}, len(existingQuizzes.Quizzes))
	for _, q := range existingQuizzes.Quizzes {
		quizTitles[strings.ToLower(q.Title)] = struct{}{}
	}
	for _, input := range data.Quizzes {
		if _, ok := quizTitles[strings.ToLower(strings.TrimSpace(input.Title))]; ok {
			continue
		}
		if _, err := s.quizzes.CreateQuiz(ctx, input); err != nil {
			return report, fmt.Errorf("seed quiz %q: %w", input.Title, err)
		}
		report.Quizzes++
	}

	logger.Log.Info("Seed data imported",
		zap.Int("users", report.Users), zap.Int("courses", report.Courses), zap.Int("quizzes", report.Quizzes))
	return report, nil
}
