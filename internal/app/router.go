package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(a.Config))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:id", c.course.GetCourse)
		public.GET("/quizzes", c.quiz.ListQuizzes)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 课程与报名
	rg.GET("/catalog", c.course.Catalog)
	rg.POST("/courses/:id/enroll", c.course.Enroll)
	rg.DELETE("/courses/:id/enroll", c.course.Unenroll)
	rg.GET("/enrollments", c.course.ListEnrollments)

	// 学习进度
	rg.GET("/courses/:id/progress", c.progress.GetProgress)
	rg.POST("/courses/:id/videos/:videoId/toggle", c.progress.ToggleVideo)
	rg.POST("/courses/:id/documents/:documentId/toggle", c.progress.ToggleDocument)

	// 测验
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
	rg.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	rg.POST("/quizzes/:id/attempts/:attemptId/submit", c.quiz.SubmitAttempt)
	rg.GET("/quizzes/:id/attempts/:attemptId/result", c.quiz.GetResult)

	// 视频教练
	rg.POST("/courses/:id/agents/:agentId/conversation", c.coaching.StartAgentConversation)
	rg.POST("/quizzes/:id/attempts/:attemptId/coach", c.coaching.StartQuizCoach)
	rg.POST("/coaching/:conversationId/messages", c.coaching.SendMessage)
	rg.DELETE("/coaching/:conversationId", c.coaching.EndConversation)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(a.Config), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses", c.adminCourse.CreateCourse)
		admin.PUT("/courses/:id", c.adminCourse.UpdateCourse)
		admin.DELETE("/courses/:id", c.adminCourse.DeleteCourse)

		admin.POST("/quizzes", c.quiz.CreateQuiz)

		admin.POST("/storage/upload", c.storage.Upload)
		admin.GET("/storage/health", c.storage.Health)
		admin.DELETE("/storage/:bucket/*path", c.storage.Delete)
	}
}
