package controller

import (
	"encoding/json"
	"errors"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"
)

type AdminCourseController struct {
	CourseService *service.CourseService
}

func NewAdminCourseController(courseService *service.CourseService) *AdminCourseController {
	return &AdminCourseController{CourseService: courseService}
}

// parseCourseForm 支持 JSON 请求体，或 multipart 表单（course 字段为 JSON，文件字段为
// image、material、video-<章节序号>-<视频序号>、document-<章节序号>-<文档序号>）
func (c *AdminCourseController) parseCourseForm(ctx *gin.Context) (service.CourseInput, service.CourseFiles, func(), error) {
	var input service.CourseInput
	files := service.CourseFiles{
		Videos:    map[string]service.FileInput{},
		Documents: map[string]service.FileInput{},
	}
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		if err := ctx.ShouldBindJSON(&input); err != nil {
			return input, files, cleanup, util.NewValidationError("Invalid course payload: %s", err.Error())
		}
		return input, files, cleanup, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return input, files, cleanup, util.NewValidationError("Invalid multipart form: %s", err.Error())
	}
	if raw := form.Value["course"]; len(raw) > 0 {
		if err := json.Unmarshal([]byte(raw[0]), &input); err != nil {
			return input, files, cleanup, util.NewValidationError("Invalid course payload: %s", err.Error())
		}
	}

	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		file, f, err := openFormFile(headers[0])
		if err != nil {
			return input, files, cleanup, err
		}
		opened = append(opened, f)

		switch {
		case field == "image":
			files.Image = &file
		case field == "material":
			files.Material = &file
		case strings.HasPrefix(field, "video-"):
			files.Videos[strings.TrimPrefix(field, "video-")] = file
		case strings.HasPrefix(field, "document-"):
			files.Documents[strings.TrimPrefix(field, "document-")] = file
		}
	}
	return input, files, cleanup, nil
}

func (c *AdminCourseController) handleError(ctx *gin.Context, err error) {
	if errors.Is(err, util.ErrCourseNotFound) {
		util.NotFoundRedirect(ctx, "Course not found", "/admin/courses")
		return
	}
	util.HandleError(ctx, err)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 管理-课程
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CourseInput true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /admin/courses [post]
func (c *AdminCourseController) CreateCourse(ctx *gin.Context) {
	input, files, cleanup, err := c.parseCourseForm(ctx)
	defer cleanup()
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	course, err := c.CourseService.CreateCourse(ctx.Request.Context(), input, files)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 编辑课程
// @Description 更新课程信息并整体替换章节树，可同时上传封面、资料、章节视频和文档
// @Tags 管理-课程
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "必填字段缺失"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id} [put]
func (c *AdminCourseController) UpdateCourse(ctx *gin.Context) {
	input, files, cleanup, err := c.parseCourseForm(ctx)
	defer cleanup()
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	course, err := c.CourseService.UpdateCourse(ctx.Request.Context(), ctx.Param("id"), input, files)
	if err != nil {
		c.handleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Course updated successfully", course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 管理-课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /admin/courses/{id} [delete]
func (c *AdminCourseController) DeleteCourse(ctx *gin.Context) {
	if err := c.CourseService.DeleteCourse(ctx.Request.Context(), ctx.Param("id")); err != nil {
		c.handleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Course deleted", nil)
}
