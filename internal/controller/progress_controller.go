package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// GetProgress godoc
// @Summary 报名课程详情与进度
// @Description 返回按章节排列的内容列表（智能体、文档、视频），完成状态与特殊文档解锁状态
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgressView}
// @Failure 403 {object} util.Response "未报名"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /courses/{id}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	view, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// ToggleVideo godoc
// @Summary 切换视频完成状态
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Param videoId path string true "视频ID"
// @Success 200 {object} util.Response{data=service.ToggleResult}
// @Router /courses/{id}/videos/{videoId}/toggle [post]
func (c *ProgressController) ToggleVideo(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	result, err := c.ProgressService.ToggleVideo(ctx.Request.Context(), userID, ctx.Param("id"), ctx.Param("videoId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ToggleDocument godoc
// @Summary 切换文档完成状态
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Param documentId path string true "文档ID"
// @Success 200 {object} util.Response{data=service.ToggleResult}
// @Router /courses/{id}/documents/{documentId}/toggle [post]
func (c *ProgressController) ToggleDocument(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	result, err := c.ProgressService.ToggleDocument(ctx.Request.Context(), userID, ctx.Param("id"), ctx.Param("documentId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
