package controller

import (
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	reconcileService *service.ReconcileService
}

func NewAdminController(reconcileService *service.ReconcileService) *AdminController {
	return &AdminController{reconcileService: reconcileService}
}

// Reconcile 手动触发一次对账：清理孤儿对象、标记超时试卷
// @Summary 立即执行对账任务
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /admin/reconcile [post]
func (c *AdminController) Reconcile(ctx *gin.Context) {
	c.reconcileService.Run(ctx.Request.Context())
	util.Success(ctx, gin.H{"message": "对账完成"})
}
