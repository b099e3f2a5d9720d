package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type StorageController struct {
	StorageService *service.StorageService
}

func NewStorageController(storageService *service.StorageService) *StorageController {
	return &StorageController{StorageService: storageService}
}

// Upload godoc
// @Summary 上传文件
// @Description 上传到指定存储桶，对象名为 <scope>/<毫秒时间戳>.<扩展名>
// @Tags 管理-存储
// @Accept mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param bucket formData string true "存储桶"
// @Param scope formData string true "路径前缀，例如 courses/<课程ID>"
// @Param file formData file true "文件"
// @Success 201 {object} util.Response{data=service.UploadResult}
// @Failure 413 {object} util.Response "文件过大"
// @Failure 415 {object} util.Response "文件类型不允许"
// @Router /admin/storage/upload [post]
func (c *StorageController) Upload(ctx *gin.Context) {
	bucket := ctx.PostForm("bucket")
	scope := strings.Trim(ctx.PostForm("scope"), "/")
	if bucket == "" || scope == "" {
		util.BadRequest(ctx, "bucket and scope are required")
		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "Please select a file to upload")
		return
	}
	file, f, err := openFormFile(fh)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer f.Close()

	result, err := c.StorageService.UploadFile(ctx.Request.Context(), file, bucket, scope)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// Delete godoc
// @Summary 删除文件
// @Tags 管理-存储
// @Produce json
// @Security ApiKeyAuth
// @Param bucket path string true "存储桶"
// @Param path path string true "对象路径"
// @Success 200 {object} util.Response
// @Router /admin/storage/{bucket}/{path} [delete]
func (c *StorageController) Delete(ctx *gin.Context) {
	bucket := ctx.Param("bucket")
	path := strings.TrimPrefix(ctx.Param("path"), "/")
	if !util.IsKnownBucket(bucket) || path == "" {
		util.BadRequest(ctx, "Invalid bucket or path")
		return
	}
	if err := c.StorageService.DeleteFile(ctx.Request.Context(), bucket, path); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "File deleted", nil)
}

// Health godoc
// @Summary 存储连通性
// @Tags 管理-存储
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /admin/storage/health [get]
func (c *StorageController) Health(ctx *gin.Context) {
	ffmpegVersion, ffmpegErr := util.GetFFmpegVersion()
	ffmpegStatus := gin.H{"available": ffmpegErr == nil, "version": ffmpegVersion}

	if err := c.StorageService.TestConnection(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "Storage unavailable",
			Data:    gin.H{"storage": err.Error(), "ffmpeg": ffmpegStatus},
		})
		return
	}
	util.Success(ctx, gin.H{"storage": "up", "ffmpeg": ffmpegStatus})
}
