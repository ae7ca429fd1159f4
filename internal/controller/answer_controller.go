package controller

import (
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnswerController struct {
	AnswerService *service.AnswerService
}

func NewAnswerController(answerService *service.AnswerService) *AnswerController {
	return &AnswerController{AnswerService: answerService}
}

// Submit godoc
// @Summary 提交作答
// @Description 保存作答并批改：选择题本地比对，主观题 AI 评分。重复提交覆盖旧答案。
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Param   questionId path string true "题目 ID"
// @Param   body body service.SubmitAnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=model.UserAnswer}
// @Failure 404 {object} util.Response "试卷或题目不存在"
// @Failure 409 {object} util.Response "试卷仍在处理中"
// @Router /api/exams/{examId}/questions/{questionId}/answer [post]
func (c *AnswerController) Submit(ctx *gin.Context) {
	var req service.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	answer, err := c.AnswerService.SubmitAnswer(ctx.Request.Context(), claims.UserID, ctx.Param("examId"), ctx.Param("questionId"), req)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// GradeAll godoc
// @Summary 整卷重新批改
// @Description 对该试卷下已提交的全部作答重新批改，用于提取出答案页后补批。
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response{data=[]model.UserAnswer}
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 409 {object} util.Response "试卷仍在处理中"
// @Router /api/exams/{examId}/grade [post]
func (c *AnswerController) GradeAll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	answers, err := c.AnswerService.GradeExam(ctx.Request.Context(), claims.UserID, ctx.Param("examId"))
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, answers)
}

// List godoc
// @Summary 整卷作答记录
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response{data=[]model.UserAnswer}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/exams/{examId}/answers [get]
func (c *AnswerController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	answers, err := c.AnswerService.ListAnswers(claims.UserID, ctx.Param("examId"))
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, answers)
}
