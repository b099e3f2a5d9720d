package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// ListQuizzes godoc
// @Summary 测验列表
// @Description search 对标题、主题、描述做不区分大小写的匹配
// @Tags 测验
// @Produce json
// @Param search query string false "搜索关键字"
// @Success 200 {object} util.Response{data=service.QuizList}
// @Router /quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	list, err := c.QuizService.ListQuizzes(ctx.Request.Context(), ctx.Query("search"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetQuiz godoc
// @Summary 测验详情
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quiz, err := c.QuizService.GetQuiz(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// CreateQuiz godoc
// @Summary 创建测验
// @Tags 管理-测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.QuizInput true "测验"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Router /admin/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	var input service.QuizInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.CreateQuiz(ctx.Request.Context(), input)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// StartAttempt godoc
// @Summary 开始测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Router /quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	attempt, err := c.QuizService.StartAttempt(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// SubmitAttempt godoc
// @Summary 提交答案
// @Description 提交后由 AI 评估，评估失败时 evaluated 为 false
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param attemptId path string true "作答ID"
// @Param body body SubmitAttemptRequest true "答案，键为题目ID"
// @Success 200 {object} util.Response{data=object}
// @Router /quizzes/{id}/attempts/{attemptId}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.QuizService.SubmitAttempt(ctx.Request.Context(), userID, ctx.Param("id"), ctx.Param("attemptId"), req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	_, evaluated := attempt.Evaluation()
	util.Success(ctx, gin.H{"attempt": attempt, "evaluated": evaluated})
}

// GetResult godoc
// @Summary 测验结果
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response{data=service.QuizResultView}
// @Failure 404 {object} util.Response "结果不存在，data.redirect 为跳转地址"
// @Router /quizzes/{id}/attempts/{attemptId}/result [get]
func (c *QuizController) GetResult(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	result, err := c.QuizService.GetQuizResult(ctx.Request.Context(), userID, ctx.Param("id"), ctx.Param("attemptId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
