package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// FileInput 待上传的文件，Size 为 -1 表示未知
type FileInput struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

type UploadResult struct {
	Bucket   string `json:"bucket"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	Duration string `json:"duration,omitempty"`
}

// StorageService 上传编排：校验、确保桶存在、写入、错误分类
type StorageService struct {
	Provider  StorageProvider
	cfg       config.StorageConfig
	now       func() time.Time
	videoInfo func(path string) (*util.VideoInfo, error)
}

func NewStorageService(provider StorageProvider, cfg config.StorageConfig) *StorageService {
	return &StorageService{Provider: provider, cfg: cfg, now: time.Now, videoInfo: util.GetVideoInfo}
}

func (s *StorageService) bucketName(bucket string) string {
	return s.cfg.BucketPrefix + bucket
}

// EnsureBucket 失败只记录警告，后续上传若真的失败会给出具体错误
func (s *StorageService) EnsureBucket(ctx context.Context, bucket string) {
	if err := s.Provider.EnsureBucket(ctx, s.bucketName(bucket)); err != nil {
		logger.Log.Warn("Failed to ensure storage bucket", zap.String("bucket", bucket), zap.Error(err))
	}
}

func tooLarge(bucket string, limit int64) *util.UploadError {
	return &util.UploadError{
		Kind:    util.UploadTooLarge,
		Bucket:  bucket,
		Message: fmt.Sprintf("File is too large. Maximum size is %d MB.", limit/(1024*1024)),
	}
}

// cappedReader 未知大小的上传读到 limit+1 字节时报错
type cappedReader struct {
	lr       *io.LimitedReader
	exceeded bool
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.lr.Read(p)
	if c.lr.N <= 0 {
		c.exceeded = true
		return n, errUploadTooLarge
	}
	return n, err
}

func exceededLimit(file FileInput) bool {
	capped, ok := file.Reader.(*cappedReader)
	return ok && capped.exceeded
}

// validate 校验通过后可能替换 file.Reader：类型不明时嗅探内容，大小未知时限制读取量
func (s *StorageService) validate(file *FileInput, bucket string) (string, error) {
	if !util.IsKnownBucket(bucket) {
		return "", &util.UploadError{
			Kind:    util.UploadBucketNotFound,
			Bucket:  bucket,
			Message: fmt.Sprintf("Storage bucket %q not found. Please contact support.", bucket),
		}
	}

	limit := s.cfg.MaxUploadBytes()
	if file.Size > limit {
		return "", tooLarge(bucket, limit)
	}

	mimeType := util.ResolveMimeType(file.ContentType, file.Name)
	if mimeType == util.MimeOctetStream && file.Reader != nil {
		var head bytes.Buffer
		sniffed, err := util.DetectMimeType(io.TeeReader(file.Reader, &head))
		file.Reader = io.MultiReader(&head, file.Reader)
		if err == nil {
			mimeType = sniffed
		}
	}
	if !util.MimeAllowed(mimeType, util.AllowedMimePrefixes) {
		return "", &util.UploadError{
			Kind:    util.UploadInvalidType,
			Bucket:  bucket,
			Message: fmt.Sprintf("File type %s is not allowed.", mimeType),
		}
	}

	if file.Size < 0 && file.Reader != nil {
		if _, ok := file.Reader.(*cappedReader); !ok {
			file.Reader = &cappedReader{lr: &io.LimitedReader{R: file.Reader, N: limit + 1}}
		}
	}
	return mimeType, nil
}

// UploadFile 写入 <scope>/<毫秒时间戳>.<ext> 并返回公开地址，总是覆盖同名对象
func (s *StorageService) UploadFile(ctx context.Context, file FileInput, bucket, scope string) (result *UploadResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "storage.upload",
		attribute.String("storage.bucket", bucket),
		attribute.Int64("file.size", file.Size),
	)
	defer func() {
		tracing.EndSpan(span, err)
		outcome := "success"
		var uploadErr *util.UploadError
		if errors.As(err, &uploadErr) {
			outcome = string(uploadErr.Kind)
		}
		monitoring.StorageUploads.WithLabelValues(bucket, outcome).Inc()
	}()

	mimeType, err := s.validate(&file, bucket)
	if err != nil {
		return nil, err
	}

	s.EnsureBucket(ctx, bucket)

	objectName := util.ObjectName(scope, file.Name, s.now())
	err = s.Provider.Upload(ctx, s.bucketName(bucket), objectName, file.Reader, file.Size, UploadOptions{
		ContentType: mimeType,
		Upsert:      true,
	})
	if exceededLimit(file) {
		return nil, tooLarge(bucket, s.cfg.MaxUploadBytes())
	}
	if err != nil {
		logger.Log.Error("Storage upload failed",
			zap.String("bucket", bucket), zap.String("object", objectName), zap.Error(err))
		return nil, classifyUploadError(bucket, err)
	}

	return &UploadResult{
		Bucket: bucket,
		Path:   objectName,
		URL:    s.PublicURL(bucket, objectName),
	}, nil
}

func courseScope(courseID string) string {
	return "courses/" + courseID
}

func (s *StorageService) UploadCourseImage(ctx context.Context, file FileInput, courseID string) (*UploadResult, error) {
	return s.UploadFile(ctx, file, util.BucketCourseImages, courseScope(courseID))
}

func (s *StorageService) UploadCourseMaterial(ctx context.Context, file FileInput, courseID string) (*UploadResult, error) {
	return s.UploadFile(ctx, file, util.BucketCourseMaterials, courseScope(courseID))
}

// isVideoFile 声明类型或扩展名任一表明是视频
func isVideoFile(mimeType, name string) bool {
	return util.IsVideo(mimeType) || util.IsVideoExtension(name)
}

// UploadChapterVideo 视频先落盘到临时文件以便用 ffprobe 读取时长，其他文件直接上传
func (s *StorageService) UploadChapterVideo(ctx context.Context, file FileInput, courseID, chapterID string) (*UploadResult, error) {
	scope := courseScope(courseID) + "/chapters/" + chapterID
	mimeType, err := s.validate(&file, util.BucketCourseVideos)
	if err != nil {
		return s.UploadFile(ctx, file, util.BucketCourseVideos, scope)
	}
	file.ContentType = mimeType
	if !isVideoFile(mimeType, file.Name) {
		return s.UploadFile(ctx, file, util.BucketCourseVideos, scope)
	}

	tmp, err := os.CreateTemp("", "learnhub-video-*"+strings.ToLower(fileSuffix(file.Name)))
	if err != nil {
		return s.UploadFile(ctx, file, util.BucketCourseVideos, scope)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, file.Reader)
	if exceededLimit(file) {
		return nil, tooLarge(util.BucketCourseVideos, s.cfg.MaxUploadBytes())
	}
	if err != nil {
		return nil, &util.UploadError{
			Kind:    util.UploadFailed,
			Bucket:  util.BucketCourseVideos,
			Message: "Failed to upload file: " + err.Error(),
			Err:     err,
		}
	}

	var duration string
	if info, err := s.videoInfo(tmp.Name()); err != nil {
		logger.Log.Debug("Video probe skipped", zap.String("file", file.Name), zap.Error(err))
	} else {
		duration = util.FormatDuration(info.Duration)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	file.Reader = tmp
	file.Size = size

	result, err := s.UploadFile(ctx, file, util.BucketCourseVideos, scope)
	if err != nil {
		return nil, err
	}
	result.Duration = duration
	return result, nil
}

func fileSuffix(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

// DeleteFile 删除对象，错误统一为一条用户可读提示
func (s *StorageService) DeleteFile(ctx context.Context, bucket, path string) error {
	if !util.IsKnownBucket(bucket) {
		return &util.UploadError{
			Kind:    util.UploadBucketNotFound,
			Bucket:  bucket,
			Message: fmt.Sprintf("Storage bucket %q not found. Please contact support.", bucket),
		}
	}
	path = strings.TrimLeft(path, "/")
	if err := s.Provider.Delete(ctx, s.bucketName(bucket), path); err != nil {
		if errors.Is(err, errInvalidObjectName) {
			return &util.UploadError{
				Kind:    util.InvalidObjectPath,
				Bucket:  bucket,
				Message: "Invalid file path.",
				Err:     err,
			}
		}
		logger.Log.Error("Storage delete failed", zap.String("bucket", bucket), zap.String("path", path), zap.Error(err))
		return &util.UploadError{
			Kind:    util.DeleteFailed,
			Bucket:  bucket,
			Message: "Failed to delete file. Please try again.",
			Err:     err,
		}
	}
	return nil
}

func (s *StorageService) PublicURL(bucket, path string) string {
	return s.Provider.GetURL(s.bucketName(bucket), strings.TrimLeft(path, "/"))
}

// TestConnection 健康检查使用
func (s *StorageService) TestConnection(ctx context.Context) error {
	if err := s.Provider.Ping(ctx); err != nil {
		return classifyUploadError("", err)
	}
	return nil
}

// classifyUploadError 把底层错误归类为网络、桶不存在、无权限或一般上传失败
func classifyUploadError(bucket string, err error) *util.UploadError {
	switch {
	case isNetworkError(err):
		return &util.UploadError{
			Kind:    util.UploadNetwork,
			Bucket:  bucket,
			Message: "Network error: Unable to connect to storage service. Please check your internet connection and try again.",
			Err:     err,
		}
	case isBucketNotFound(err):
		return &util.UploadError{
			Kind:    util.UploadBucketNotFound,
			Bucket:  bucket,
			Message: fmt.Sprintf("Storage bucket %q not found. Please contact support.", bucket),
			Err:     err,
		}
	case isPermissionDenied(err):
		return &util.UploadError{
			Kind:    util.UploadPermissionDenied,
			Bucket:  bucket,
			Message: "Permission denied: Unable to upload to storage. Please contact support.",
			Err:     err,
		}
	default:
		return &util.UploadError{
			Kind:    util.UploadFailed,
			Bucket:  bucket,
			Message: "Failed to upload file: " + err.Error(),
			Err:     err,
		}
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"failed to fetch", "network", "connection refused", "no such host", "dial tcp", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isBucketNotFound(err error) bool {
	if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
		return true
	}
	var ossErr oss.ServiceError
	if errors.As(err, &ossErr) && ossErr.Code == "NoSuchBucket" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bucket not found") || strings.Contains(msg, "nosuchbucket")
}

func isPermissionDenied(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "AccessDenied" || resp.StatusCode == 403 {
		return true
	}
	var ossErr oss.ServiceError
	if errors.As(err, &ossErr) && (ossErr.StatusCode == 403 || ossErr.Code == "AccessDenied") {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"permission", "access denied", "policy", "row-level security"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
