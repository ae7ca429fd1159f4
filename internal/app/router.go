package app

import (
	"exam_tutor_backend/docs"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/middleware"
	"exam_tutor_backend/internal/model"
	"exam_tutor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/me", c.auth.Me)

		// 上传
		authGroup.POST("/uploads/presign", c.upload.Presign)
		authGroup.POST("/uploads/:examId/confirm", c.upload.Confirm)
		authGroup.POST("/upload/direct", c.upload.Direct)

		// 试卷
		authGroup.GET("/exams", c.exam.List)
		authGroup.GET("/exams/:examId", c.exam.Detail)
		authGroup.GET("/exams/:examId/status", c.exam.Status)
		authGroup.DELETE("/exams/:examId", c.exam.Delete)
		authGroup.GET("/exams/:examId/export", c.export.Export)

		// 作答与批改
		authGroup.POST("/exams/:examId/questions/:questionId/answer", c.answer.Submit)
		authGroup.GET("/exams/:examId/answers", c.answer.List)
		authGroup.POST("/exams/:examId/grade", c.answer.GradeAll)

		// AI 辅导
		authGroup.POST("/exams/:examId/tutor", c.chat.Tutor)
		authGroup.GET("/exams/:examId/tutor/history", c.chat.History)

		// 管理员
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/reconcile", c.admin.Reconcile)
		}
	}
}
