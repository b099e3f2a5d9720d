package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCourseNotFound     = errors.New("course not found")
	ErrContentNotFound    = errors.New("content not found in course")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrResultNotReady     = errors.New("results not found")
	ErrSessionNotFound    = errors.New("coaching session not found")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrRequestCancelled   = errors.New("request cancelled before commit")
	ErrNotEnrolled        = errors.New("you are not enrolled in this course")
)

// ValidationError 表单字段校验失败，Message 直接展示给用户
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConfigMissingError 缺少或仍是占位符的 API Key / Replica ID，不会发起网络请求
type ConfigMissingError struct {
	Message string
}

func (e *ConfigMissingError) Error() string { return e.Message }

// NetworkError 连接外部服务失败
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Network error: unable to reach %s. Please check your connection and try again.", e.Service)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError 外部服务返回非 2xx
type RemoteError struct {
	Service string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API Error: %d", e.Status)
}

type UploadErrorKind string

const (
	UploadNetwork          UploadErrorKind = "network"
	UploadBucketNotFound   UploadErrorKind = "bucket_not_found"
	UploadPermissionDenied UploadErrorKind = "permission_denied"
	UploadFailed           UploadErrorKind = "upload_failed"
	UploadTooLarge         UploadErrorKind = "too_large"
	UploadInvalidType      UploadErrorKind = "invalid_type"
	DeleteFailed           UploadErrorKind = "delete_failed"
	InvalidObjectPath      UploadErrorKind = "invalid_path"
)

// UploadError 存储操作失败，Message 已转换为用户可读文本
type UploadError struct {
	Kind    UploadErrorKind
	Bucket  string
	Message string
	Err     error
}

func (e *UploadError) Error() string { return e.Message }

func (e *UploadError) Unwrap() error { return e.Err }
