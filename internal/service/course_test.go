package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingUploader struct {
	calls []string
}

func (u *recordingUploader) UploadCourseImage(_ context.Context, file FileInput, courseID string) (*UploadResult, error) {
	u.calls = append(u.calls, "image:"+file.Name)
	return &UploadResult{URL: "https://cdn.test/" + courseID + "/" + file.Name}, nil
}

func (u *recordingUploader) UploadCourseMaterial(_ context.Context, file FileInput, courseID string) (*UploadResult, error) {
	u.calls = append(u.calls, "material:"+file.Name)
	return &UploadResult{URL: "https://cdn.test/" + courseID + "/" + file.Name}, nil
}

func (u *recordingUploader) UploadChapterVideo(_ context.Context, file FileInput, courseID, chapterID string) (*UploadResult, error) {
	u.calls = append(u.calls, "video:"+chapterID+":"+file.Name)
	return &UploadResult{URL: "https://cdn.test/" + chapterID + "/" + file.Name, Duration: "3:05"}, nil
}

func validCourseInput() CourseInput {
	return CourseInput{
		Title:                  "Cloud",
		Description:            "desc",
		AgentCourseDescription: "agent desc",
		Image:                  "https://cdn.test/cover.png",
		Chapters: []ChapterInput{
			{
				Title:     "Intro",
				Videos:    []VideoInput{{Title: "Welcome"}},
				Documents: []DocumentInput{{Title: "Notes"}, {Title: "Certificate", IsSpecial: true}},
				Agents:    []AgentInput{{Title: "Tutor", ReplicaID: " r-1 ", ConversationalContext: "ctx"}},
			},
		},
	}
}

func TestCreateCourseValidation(t *testing.T) {
	svc := NewCourseService(newMemCourses(), newMemEnrollments(), &recordingUploader{})
	ctx := context.Background()

	input := validCourseInput()
	input.AgentCourseDescription = "  "
	_, err := svc.CreateCourse(ctx, input, CourseFiles{})
	var validation *util.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Please fill in all required fields", validation.Message)

	input = validCourseInput()
	input.Image = ""
	_, err = svc.CreateCourse(ctx, input, CourseFiles{})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Please provide a course image", validation.Message)

	input = validCourseInput()
	input.Category = "Cooking"
	_, err = svc.CreateCourse(ctx, input, CourseFiles{})
	require.ErrorAs(t, err, &validation)
}

func TestCreateCourseUploadsFiles(t *testing.T) {
	uploader := &recordingUploader{}
	courses := newMemCourses()
	svc := NewCourseService(courses, newMemEnrollments(), uploader)

	input := validCourseInput()
	input.Image = ""
	files := CourseFiles{
		Image:     &FileInput{Name: "cover.png"},
		Videos:    map[string]FileInput{FileKey(0, 0): {Name: "welcome.mp4"}},
		Documents: map[string]FileInput{FileKey(0, 1): {Name: "cert.pdf"}},
	}

	course, err := svc.CreateCourse(context.Background(), input, files)
	require.NoError(t, err)

	assert.Equal(t, model.CategoryTechnology, course.Category)
	assert.Equal(t, "https://cdn.test/"+course.ID+"/cover.png", course.Image)
	ch := course.Chapters[0]
	assert.Equal(t, "https://cdn.test/"+ch.ID+"/welcome.mp4", ch.Videos[0].URL)
	assert.Equal(t, "3:05", ch.Videos[0].Duration)
	assert.Empty(t, ch.Documents[0].URL)
	assert.Equal(t, "https://cdn.test/"+course.ID+"/cert.pdf", ch.Documents[1].URL)
	assert.Equal(t, "r-1", ch.Agents[0].ReplicaID)
	assert.Len(t, uploader.calls, 3)

	stored, err := courses.FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.Title, stored.Title)
}

func TestUpdateCourseKeepsKnownIDs(t *testing.T) {
	courses := newMemCourses(sampleCourse())
	svc := NewCourseService(courses, newMemEnrollments(), &recordingUploader{})

	input := validCourseInput()
	input.Chapters[0].ID = "ch-1"
	input.Chapters[0].Videos[0].ID = "v1"
	// 别的课程的 ID 不能被沿用
	input.Chapters[0].Documents[0].ID = "foreign-doc"

	updated, err := svc.UpdateCourse(context.Background(), "course-1", input, CourseFiles{})
	require.NoError(t, err)
	require.Len(t, updated.Chapters, 1)
	assert.Equal(t, "ch-1", updated.Chapters[0].ID)
	assert.Equal(t, "v1", updated.Chapters[0].Videos[0].ID)
	assert.NotEqual(t, "foreign-doc", updated.Chapters[0].Documents[0].ID)
	assert.NotEmpty(t, updated.Chapters[0].Documents[0].ID)

	_, err = svc.UpdateCourse(context.Background(), "missing", input, CourseFiles{})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestEnrollmentFlow(t *testing.T) {
	courses := newMemCourses(sampleCourse())
	svc := NewCourseService(courses, newMemEnrollments(), &recordingUploader{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Enroll(ctx, testUser, "missing"), util.ErrCourseNotFound)
	require.NoError(t, svc.Enroll(ctx, testUser, "course-1"))
	require.NoError(t, svc.Enroll(ctx, testUser, "course-1"))

	enrolled, err := svc.ListEnrolled(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, "course-1", enrolled[0].ID)

	require.NoError(t, svc.Unenroll(ctx, testUser, "course-1"))
	enrolled, err = svc.ListEnrolled(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, enrolled)

	require.NoError(t, svc.DeleteCourse(ctx, "course-1"))
	assert.ErrorIs(t, svc.DeleteCourse(ctx, "course-1"), util.ErrCourseNotFound)
}

type memUsers struct {
	mu     sync.Mutex
	users  []*model.User
	logins map[uint]time.Time
}

func newMemUsers() *memUsers {
	return &memUsers{logins: map[uint]time.Time{}}
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uint(len(m.users) + 1)
	user.Email = strings.ToLower(user.Email)
	m.users = append(m.users, user)
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) UpdateLastLogin(_ context.Context, userID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[userID] = at
	return nil
}

func newAuth(users UserStore) *AuthService {
	return NewAuthService(users, &config.Config{JWT: config.JWTConfig{Secret: "test-secret-with-enough-length-123456", ExpireTime: time.Hour}})
}

func TestAuthRegisterAndLogin(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()

	user := &model.User{Name: "Ada", Email: "Ada@Example.com", Password: "password123"}
	require.NoError(t, auth.Register(ctx, user))
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "password123", user.Password)

	assert.ErrorIs(t, auth.Register(ctx, &model.User{Email: "ada@example.com", Password: "x"}), util.ErrEmailRegistered)

	_, _, err := auth.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	token, logged, err := auth.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	claims, err := util.ParseJWT(token, "test-secret-with-enough-length-123456")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Contains(t, users.logins, user.ID)

	// 热更新后使用新密钥签发
	auth.UpdateJWT(config.JWTConfig{Secret: "another-secret-with-enough-length-000", ExpireTime: time.Hour})
	token, _, err = auth.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, err = util.ParseJWT(token, "another-secret-with-enough-length-000")
	assert.NoError(t, err)

	_, err = auth.GetUser(ctx, 999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

const seedYAML = `
users:
  - name: Admin
    email: admin@learnhub.test
    password: admin-password
    role: admin
courses:
  - title: Cloud
    description: desc
    agentCourseDescription: agent desc
    image: https://cdn.test/cloud.png
    chapters:
      - title: Intro
        videos:
          - title: Welcome
            url: https://cdn.test/welcome.mp4
quizzes:
  - title: Cloud Basics
    questions:
      - prompt: What is IaaS?
        marks: 5
`

func TestSeed(t *testing.T) {
	data, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, data.Users, 1)
	assert.Equal(t, model.Admin, data.Users[0].Role)

	auth := newAuth(newMemUsers())
	courses := NewCourseService(newMemCourses(), newMemEnrollments(), nil)
	quizzes := NewQuizService(&memQuizzes{}, newMemAttempts(), nil)
	seeder := NewSeedService(auth, courses, quizzes)

	report, err := seeder.Seed(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Users: 1, Courses: 1, Quizzes: 1}, *report)

	// 再次导入时跳过已存在的记录
	report, err = seeder.Seed(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{}, *report)

	_, err = ParseSeed(strings.NewReader("users:\n  - nickname: x\n"))
	assert.Error(t, err)
}
