package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1700000000123)

func newLocalStorage(t *testing.T) (*StorageService, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.StorageConfig{
		Type:          util.StorageLocal,
		LocalPath:     root,
		PublicBaseURL: "http://cdn.test/",
		MaxUploadMB:   1,
	}
	provider, err := NewStorageProvider(&cfg)
	require.NoError(t, err)

	svc := NewStorageService(provider, cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc, root
}

func textFile(name, contentType, body string) FileInput {
	return FileInput{Name: name, Size: int64(len(body)), ContentType: contentType, Reader: strings.NewReader(body)}
}

// failingProvider Upload/Delete/Ping 返回固定错误
type failingProvider struct {
	err error
}

func (p failingProvider) EnsureBucket(context.Context, string) error {
	return nil
}

func (p failingProvider) Upload(context.Context, string, string, io.Reader, int64, UploadOptions) error {
	return p.err
}

func (p failingProvider) Delete(context.Context, string, string) error {
	return p.err
}

func (p failingProvider) GetURL(bucket, objectName string) string {
	return bucket + "/" + objectName
}

func (p failingProvider) Ping(context.Context) error {
	return p.err
}

func TestUploadCourseImageLocal(t *testing.T) {
	svc, root := newLocalStorage(t)

	res, err := svc.UploadCourseImage(context.Background(), textFile("Cover.PNG", "image/png", "png-bytes"), "c1")
	require.NoError(t, err)

	assert.Equal(t, util.BucketCourseImages, res.Bucket)
	assert.Equal(t, "courses/c1/1700000000123.png", res.Path)
	assert.Equal(t, "http://cdn.test/uploads/course-images/courses/c1/1700000000123.png", res.URL)

	data, err := os.ReadFile(filepath.Join(root, util.BucketCourseImages, "courses", "c1", "1700000000123.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	// 同一毫秒再次上传会覆盖
	_, err = svc.UploadCourseImage(context.Background(), textFile("Cover.png", "image/png", "second"), "c1")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, util.BucketCourseImages, "courses", "c1", "1700000000123.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestUploadFileWithoutExtension(t *testing.T) {
	svc, _ := newLocalStorage(t)

	res, err := svc.UploadFile(context.Background(), textFile("README", "text/plain", "hi"), util.BucketCourseMaterials, "/courses/c9/")
	require.NoError(t, err)
	assert.Equal(t, "courses/c9/1700000000123.bin", res.Path)
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newLocalStorage(t)
	ctx := context.Background()

	big := FileInput{Name: "big.mp4", Size: 2 * 1024 * 1024, ContentType: "video/mp4", Reader: strings.NewReader("")}
	_, err := svc.UploadFile(ctx, big, util.BucketCourseVideos, "courses/c1")
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadTooLarge, uploadErr.Kind)
	assert.Equal(t, "File is too large. Maximum size is 1 MB.", uploadErr.Message)

	_, err = svc.UploadFile(ctx, textFile("song.mp3", "audio/mpeg", "x"), util.BucketCourseMaterials, "courses/c1")
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadInvalidType, uploadErr.Kind)
	assert.Equal(t, "File type audio/mpeg is not allowed.", uploadErr.Message)

	_, err = svc.UploadFile(ctx, textFile("a.png", "image/png", "x"), "avatars", "u/1")
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadBucketNotFound, uploadErr.Kind)
}

func TestUploadUnknownSizeEnforcesLimit(t *testing.T) {
	svc, root := newLocalStorage(t)
	ctx := context.Background()
	limit := 1024 * 1024

	big := FileInput{Name: "big.pdf", Size: -1, ContentType: "application/pdf", Reader: bytes.NewReader(make([]byte, limit+1))}
	_, err := svc.UploadCourseMaterial(ctx, big, "c1")
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadTooLarge, uploadErr.Kind)
	assert.Equal(t, "File is too large. Maximum size is 1 MB.", uploadErr.Message)
	// 不留下半截对象
	entries, err := os.ReadDir(filepath.Join(root, util.BucketCourseMaterials, "courses", "c1"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	video := FileInput{Name: "big.mp4", Size: -1, ContentType: "video/mp4", Reader: bytes.NewReader(make([]byte, limit+1))}
	_, err = svc.UploadChapterVideo(ctx, video, "c1", "ch1")
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadTooLarge, uploadErr.Kind)

	exact := FileInput{Name: "ok.pdf", Size: -1, ContentType: "application/pdf", Reader: bytes.NewReader(make([]byte, limit))}
	res, err := svc.UploadCourseMaterial(ctx, exact, "c1")
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(root, util.BucketCourseMaterials, filepath.FromSlash(res.Path)))
	require.NoError(t, err)
	assert.Equal(t, int64(limit), info.Size())
}

func TestUploadSniffsUndeclaredType(t *testing.T) {
	svc, root := newLocalStorage(t)
	ctx := context.Background()

	res, err := svc.UploadCourseMaterial(ctx, textFile("blob", util.MimeOctetStream, "%PDF-1.4 body"), "c1")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, util.BucketCourseMaterials, filepath.FromSlash(res.Path)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = svc.UploadCourseMaterial(ctx, textFile("track", "", "ID3\x03\x00\x00\x00\x00\x00\x00"), "c1")
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadInvalidType, uploadErr.Kind)
	assert.Equal(t, "File type audio/mpeg is not allowed.", uploadErr.Message)
}

func TestUploadErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    util.UploadErrorKind
		message string
	}{
		{
			name:    "failed to fetch",
			err:     errors.New("TypeError: Failed to fetch"),
			kind:    util.UploadNetwork,
			message: "Network error: Unable to connect to storage service. Please check your internet connection and try again.",
		},
		{
			name:    "minio missing bucket",
			err:     minio.ErrorResponse{Code: "NoSuchBucket", Message: "The specified bucket does not exist"},
			kind:    util.UploadBucketNotFound,
			message: `Storage bucket "course-images" not found. Please contact support.`,
		},
		{
			name:    "permission",
			err:     fmt.Errorf("open: %w", os.ErrPermission),
			kind:    util.UploadPermissionDenied,
			message: "Permission denied: Unable to upload to storage. Please contact support.",
		},
		{
			name:    "network",
			err:     errors.New("network request failed"),
			kind:    util.UploadNetwork,
			message: "Network error: Unable to connect to storage service. Please check your internet connection and try again.",
		},
		{
			name:    "policy",
			err:     errors.New("new row violates security policy for table objects"),
			kind:    util.UploadPermissionDenied,
			message: "Permission denied: Unable to upload to storage. Please contact support.",
		},
		{
			name:    "other",
			err:     errors.New("disk full"),
			kind:    util.UploadFailed,
			message: "Failed to upload file: disk full",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewStorageService(failingProvider{err: tc.err}, config.StorageConfig{MaxUploadMB: 10})
			_, err := svc.UploadCourseImage(context.Background(), textFile("a.png", "image/png", "x"), "c1")

			var uploadErr *util.UploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.Equal(t, tc.kind, uploadErr.Kind)
			assert.Equal(t, tc.message, uploadErr.Message)
			assert.Equal(t, tc.err, uploadErr.Err)
		})
	}
}

func TestDeleteFile(t *testing.T) {
	svc, root := newLocalStorage(t)
	ctx := context.Background()

	res, err := svc.UploadCourseMaterial(ctx, textFile("notes.pdf", "application/pdf", "%PDF"), "c1")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteFile(ctx, util.BucketCourseMaterials, "/"+res.Path))
	_, err = os.Stat(filepath.Join(root, util.BucketCourseMaterials, filepath.FromSlash(res.Path)))
	assert.True(t, os.IsNotExist(err))

	failing := NewStorageService(failingProvider{err: errors.New("boom")}, config.StorageConfig{})
	err = failing.DeleteFile(ctx, util.BucketCourseMaterials, "x.pdf")
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.DeleteFailed, uploadErr.Kind)
	assert.Equal(t, "Failed to delete file. Please try again.", uploadErr.Message)
}

func TestDeleteFileOutsideBucket(t *testing.T) {
	base := t.TempDir()
	cfg := config.StorageConfig{Type: util.StorageLocal, LocalPath: filepath.Join(base, "storage")}
	provider, err := NewStorageProvider(&cfg)
	require.NoError(t, err)
	svc := NewStorageService(provider, cfg)
	ctx := context.Background()
	require.NoError(t, provider.EnsureBucket(ctx, util.BucketCourseImages))

	victim := filepath.Join(base, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0644))

	err = svc.DeleteFile(ctx, util.BucketCourseImages, "../../victim.txt")
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.InvalidObjectPath, uploadErr.Kind)
	assert.Equal(t, "Invalid file path.", uploadErr.Message)
	assert.FileExists(t, victim)

	err = provider.Delete(ctx, util.BucketCourseImages, "../../victim.txt")
	assert.ErrorIs(t, err, errInvalidObjectName)
	err = provider.Delete(ctx, util.BucketCourseImages, "")
	assert.ErrorIs(t, err, errInvalidObjectName)
	assert.FileExists(t, victim)
}

func TestLocalProviderRejectsOverwriteAndTraversal(t *testing.T) {
	root := t.TempDir()
	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: root}}
	ctx := context.Background()
	require.NoError(t, p.EnsureBucket(ctx, "b"))

	require.NoError(t, p.Upload(ctx, "b", "x/a.txt", strings.NewReader("1"), 1, UploadOptions{}))
	err := p.Upload(ctx, "b", "x/a.txt", strings.NewReader("2"), 1, UploadOptions{})
	assert.ErrorIs(t, err, errObjectExists)

	err = p.Upload(ctx, "b", "../escape.txt", strings.NewReader("3"), 1, UploadOptions{Upsert: true})
	assert.Error(t, err)

	err = p.Upload(ctx, "missing", "a.txt", strings.NewReader("4"), 1, UploadOptions{})
	assert.True(t, isBucketNotFound(err))
}

func TestUploadChapterVideoWithoutProbe(t *testing.T) {
	svc, root := newLocalStorage(t)

	// 内容不是有效视频，探测失败时仍然上传，只是没有时长
	res, err := svc.UploadChapterVideo(context.Background(), textFile("lesson.mp4", "video/mp4", "not a real video"), "c1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, "courses/c1/chapters/ch1/1700000000123.mp4", res.Path)
	assert.Empty(t, res.Duration)

	data, err := os.ReadFile(filepath.Join(root, util.BucketCourseVideos, filepath.FromSlash(res.Path)))
	require.NoError(t, err)
	assert.Equal(t, "not a real video", string(data))
}

func TestUploadChapterVideoReadsDurationOnlyForVideos(t *testing.T) {
	svc, _ := newLocalStorage(t)
	ctx := context.Background()
	var inspected []string
	svc.videoInfo = func(path string) (*util.VideoInfo, error) {
		inspected = append(inspected, filepath.Ext(path))
		return &util.VideoInfo{Duration: 75}, nil
	}

	res, err := svc.UploadChapterVideo(ctx, textFile("lesson.mp4", "video/mp4", "frames"), "c1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, "1:15", res.Duration)

	res, err = svc.UploadChapterVideo(ctx, textFile("slides.pdf", "application/pdf", "%PDF"), "c1", "ch1")
	require.NoError(t, err)
	assert.Empty(t, res.Duration)

	// 扩展名是视频时即使类型未声明也会探测
	res, err = svc.UploadChapterVideo(ctx, textFile("clip.webm", "", "frames"), "c1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, "1:15", res.Duration)

	assert.Equal(t, []string{".mp4", ".webm"}, inspected)
}

func TestRemoteProviderURLs(t *testing.T) {
	ossProvider := &OSSStorageProvider{Config: &config.StorageConfig{PublicBaseURL: "https://cdn.test/"}}
	assert.Equal(t, "https://cdn.test/course-images/courses/c1/1.png", ossProvider.GetURL("course-images", "courses/c1/1.png"))
	// 不同桶的同名对象地址不同
	assert.NotEqual(t, ossProvider.GetURL("course-images", "courses/c1/1.png"), ossProvider.GetURL("course-videos", "courses/c1/1.png"))

	ossProvider = &OSSStorageProvider{Config: &config.StorageConfig{OSSEndpoint: "https://oss-cn-hangzhou.aliyuncs.com"}}
	assert.Equal(t, "https://course-images.oss-cn-hangzhou.aliyuncs.com/courses/c1/1.png", ossProvider.GetURL("course-images", "courses/c1/1.png"))

	minioProvider := &MinioStorageProvider{Config: &config.StorageConfig{PublicBaseURL: "https://cdn.test"}}
	assert.Equal(t, "https://cdn.test/course-images/courses/c1/1.png", minioProvider.GetURL("course-images", "courses/c1/1.png"))

	minioProvider = &MinioStorageProvider{Config: &config.StorageConfig{MinioEndpoint: "localhost:9000", MinioUseSSL: true}}
	assert.Equal(t, "https://localhost:9000/course-images/courses/c1/1.png", minioProvider.GetURL("course-images", "courses/c1/1.png"))
}

func TestTestConnection(t *testing.T) {
	svc, _ := newLocalStorage(t)
	assert.NoError(t, svc.TestConnection(context.Background()))

	failing := NewStorageService(failingProvider{err: errors.New("dial tcp 10.0.0.1:9000: connection refused")}, config.StorageConfig{})
	err := failing.TestConnection(context.Background())
	var uploadErr *util.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, util.UploadNetwork, uploadErr.Kind)
}
