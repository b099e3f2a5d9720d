package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testUserID uint = 5

type stubCourses struct {
	course *model.Course
}

func (s stubCourses) FindByID(_ context.Context, id string) (*model.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s.course
	return &cp, nil
}

func (s stubCourses) ListWithTree(context.Context) ([]model.Course, error) {
	return []model.Course{*s.course}, nil
}

type stubEnrollments map[string]bool

func (s stubEnrollments) IsEnrolled(_ context.Context, _ uint, courseID string) (bool, error) {
	return s[courseID], nil
}

func (s stubEnrollments) CourseIDs(context.Context, uint) ([]string, error) {
	var ids []string
	for id, ok := range s {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type stubCompletions struct {
	mu   sync.Mutex
	done map[string]bool
}

func (s *stubCompletions) Completed(_ context.Context, _ uint, _ string, kind model.ContentKind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for key, ok := range s.done {
		if ok && strings.HasPrefix(key, string(kind)+":") {
			ids = append(ids, strings.TrimPrefix(key, string(kind)+":"))
		}
	}
	return ids, nil
}

func (s *stubCompletions) SetCompleted(_ context.Context, _ uint, _ string, itemID string, kind model.ContentKind, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[string(kind)+":"+itemID] = completed
	return nil
}

func testCourse() *model.Course {
	video := model.Video{Title: "Intro"}
	video.ID = "v1"
	doc := model.Document{Title: "Notes"}
	doc.ID = "d1"
	ch := model.Chapter{Title: "Basics", Videos: []model.Video{video}, Documents: []model.Document{doc}}
	ch.ID = "ch-1"
	course := &model.Course{Title: "Cloud", Chapters: []model.Chapter{ch}}
	course.ID = "course-1"
	return course
}

// withUser 模拟 AuthMiddleware 写入的登录信息
func withUser(c *gin.Context) {
	c.Set(util.ContextUserKey, &util.Claims{UserID: testUserID, Role: model.Student})
	c.Next()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func newProgressRouter(enrolled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	progressService := service.NewProgressService(
		stubCourses{course: testCourse()},
		stubEnrollments{"course-1": enrolled},
		&stubCompletions{done: map[string]bool{}},
		nil,
	)
	ctrl := NewProgressController(progressService)

	r := gin.New()
	r.GET("/courses/:id/progress", withUser, ctrl.GetProgress)
	r.POST("/courses/:id/videos/:videoId/toggle", withUser, ctrl.ToggleVideo)
	r.POST("/courses/:id/documents/:documentId/toggle", withUser, ctrl.ToggleDocument)
	r.GET("/anonymous/:id", ctrl.GetProgress)
	return r
}

func TestProgressEndpoints(t *testing.T) {
	r := newProgressRouter(true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/course-1/videos/v1/toggle", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, true, data["completed"])
	assert.Equal(t, "committed", data["state"])
	assert.Equal(t, float64(50), data["summary"].(map[string]interface{})["percentage"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/course-1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"v1"}, data["completedVideoIds"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courses/course-1/documents/other/toggle", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressErrors(t *testing.T) {
	r := newProgressRouter(false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/course-1/progress", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courses/missing/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/courses", body["data"].(map[string]interface{})["redirect"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anonymous/course-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + fileName + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestStorageUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.StorageConfig{
		Type:          util.StorageLocal,
		LocalPath:     t.TempDir(),
		PublicBaseURL: "http://cdn.test",
		MaxUploadMB:   1,
	}
	provider, err := service.NewStorageProvider(&cfg)
	require.NoError(t, err)
	ctrl := NewStorageController(service.NewStorageService(provider, cfg))

	r := gin.New()
	r.POST("/upload", ctrl.Upload)

	fields := map[string]string{"bucket": util.BucketCourseImages, "scope": "courses/c1"}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, fields, "cover.png", "image/png", "png-bytes"))
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(data["url"].(string), "http://cdn.test/uploads/course-images/courses/c1/"))
	assert.True(t, strings.HasSuffix(data["url"].(string), ".png"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, fields, "song.mp3", "audio/mpeg", "mp3"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "File type audio/mpeg is not allowed.", decode(t, rec)["message"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, fields, "", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, map[string]string{"bucket": util.BucketCourseImages}, "cover.png", "image/png", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubUsers struct {
	mu    sync.Mutex
	users []*model.User
}

func (s *stubUsers) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uint(len(s.users) + 1)
	s.users = append(s.users, user)
	return nil
}

func (s *stubUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsers) UpdateLastLogin(context.Context, uint, time.Time) error {
	return nil
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret-with-enough-length-123456", ExpireTime: time.Hour}}
	ctrl := NewAuthController(service.NewAuthService(&stubUsers{}, cfg))

	r := gin.New()
	r.POST("/register", ctrl.Register)
	r.POST("/login", ctrl.Login)

	rec := postJSON(r, "/register", `{"name":"Ada","email":"ada@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(r, "/register", `{"name":"Ada","email":"ada@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(r, "/register", `{"name":"Ada","email":"not-an-email","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(r, "/login", `{"email":"ada@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(r, "/login", `{"email":"ada@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	claims, err := util.ParseJWT(data["token"].(string), cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)
	assert.NotContains(t, rec.Body.String(), "password123")
}
