package util

import (
	"errors"
	"learnhub_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

// NotFoundRedirect 实体不存在时返回列表页地址，由前端跳转并提示
func NotFoundRedirect(c *gin.Context, message, redirect string) {
	c.JSON(http.StatusNotFound, Response{
		Code:    http.StatusNotFound,
		Message: message,
		Data:    gin.H{"redirect": redirect},
	})
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// HandleError 把业务错误转换为一次用户可见的响应
func HandleError(c *gin.Context, err error) {
	var validation *ValidationError
	var configMissing *ConfigMissingError
	var network *NetworkError
	var remote *RemoteError
	var upload *UploadError

	switch {
	case errors.As(err, &validation):
		BadRequest(c, validation.Message)
	case errors.As(err, &configMissing):
		Error(c, http.StatusServiceUnavailable, configMissing.Message)
	case errors.As(err, &upload):
		status := http.StatusBadGateway
		switch upload.Kind {
		case UploadTooLarge:
			status = http.StatusRequestEntityTooLarge
		case UploadInvalidType:
			status = http.StatusUnsupportedMediaType
		case UploadPermissionDenied:
			status = http.StatusForbidden
		case InvalidObjectPath:
			status = http.StatusBadRequest
		}
		Error(c, status, upload.Message)
	case errors.As(err, &network):
		Error(c, http.StatusBadGateway, network.Error())
	case errors.As(err, &remote):
		Error(c, http.StatusBadGateway, remote.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Forbidden(c)
	case errors.Is(err, ErrNotEnrolled):
		Error(c, http.StatusForbidden, "You are not enrolled in this course")
	case errors.Is(err, ErrCourseNotFound):
		NotFoundRedirect(c, "Course not found. Redirecting to courses list.", "/courses")
	case errors.Is(err, ErrQuizNotFound), errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrResultNotReady):
		NotFoundRedirect(c, "Results not found", "/")
	case errors.Is(err, ErrContentNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrUserNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailRegistered), errors.Is(err, ErrAlreadySubmitted):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyMessage):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrRequestCancelled):
		Error(c, 499, err.Error())
	default:
		LogInternalError(c, err)
	}
}
