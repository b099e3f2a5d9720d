package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CoachingController struct {
	CoachingService *service.CoachingService
}

func NewCoachingController(coachingService *service.CoachingService) *CoachingController {
	return &CoachingController{CoachingService: coachingService}
}

// StartAgentConversation godoc
// @Summary 启动章节智能体会话
// @Description 返回会话地址，前端在新标签页打开
// @Tags 视频教练
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程ID"
// @Param agentId path string true "智能体ID"
// @Success 200 {object} util.Response{data=service.LaunchResult}
// @Failure 503 {object} util.Response "Tavus 未配置"
// @Router /courses/{id}/agents/{agentId}/conversation [post]
func (c *CoachingController) StartAgentConversation(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	result, err := c.CoachingService.LaunchAgentSession(ctx.Request.Context(), userID, ctx.Param("id"), ctx.Param("agentId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// StartQuizCoach godoc
// @Summary 启动测验结果教练
// @Description 以测验结果为上下文创建会话，并尝试加入通话以便直接发送消息
// @Tags 视频教练
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response{data=service.LaunchResult}
// @Router /quizzes/{id}/attempts/{attemptId}/coach [post]
func (c *CoachingController) StartQuizCoach(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	result, err := c.CoachingService.LaunchQuizCoach(ctx.Request.Context(), userID, ctx.Param("attemptId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

type CoachMessageRequest struct {
	Label string   `json:"label" binding:"required"`
	Items []string `json:"items"`
}

// SendMessage godoc
// @Summary 向教练发送优势或待改进项
// @Description delivery 为 in_band 表示已通过通话发送，clipboard 表示需由前端复制 text
// @Tags 视频教练
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param conversationId path string true "会话ID"
// @Param body body CoachMessageRequest true "消息"
// @Success 200 {object} util.Response{data=service.SendResult}
// @Router /coaching/{conversationId}/messages [post]
func (c *CoachingController) SendMessage(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req CoachMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.CoachingService.SendToCoach(ctx.Request.Context(), userID, ctx.Param("conversationId"), req.Label, req.Items)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// EndConversation godoc
// @Summary 结束教练会话
// @Tags 视频教练
// @Produce json
// @Security ApiKeyAuth
// @Param conversationId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /coaching/{conversationId} [delete]
func (c *CoachingController) EndConversation(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.CoachingService.EndSession(userID, ctx.Param("conversationId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Session ended", nil)
}
