package controller

import (
	"errors"
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// List godoc
// @Summary 我的试卷列表
// @Tags 试卷
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.ExamSummary}
// @Router /api/exams [get]
func (c *ExamController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	exams, err := c.ExamService.ListByUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// Status godoc
// @Summary 查询试卷处理状态
// @Description 处理期间客户端轮询此接口
// @Tags 试卷
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response{data=service.ExamStatusInfo}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/exams/{examId}/status [get]
func (c *ExamController) Status(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	status, err := c.ExamService.GetStatus(ctx.Param("examId"), claims.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// Detail godoc
// @Summary 试卷完整内容
// @Description 节、题目、选项与图片限时访问地址
// @Tags 试卷
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response{data=service.ExamDetail}
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 409 {object} util.Response "试卷仍在处理中"
// @Router /api/exams/{examId} [get]
func (c *ExamController) Detail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	detail, err := c.ExamService.GetDetail(ctx.Request.Context(), ctx.Param("examId"), claims.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// Delete godoc
// @Summary 删除试卷
// @Description 删除试卷数据及对象存储里的 PDF 和图片
// @Tags 试卷
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/exams/{examId} [delete]
func (c *ExamController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.ExamService.Delete(ctx.Request.Context(), ctx.Param("examId"), claims.UserID); err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func respondExamError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrExamNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrExamNotReady):
		util.Error(ctx, 409, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
