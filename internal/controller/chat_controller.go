package controller

import (
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"
	"fmt"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	ChatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) *ChatController {
	return &ChatController{ChatService: chatService}
}

// TutorRequest 一轮辅导提问
// swagger:model TutorRequest
type TutorRequest struct {
	QuestionNumber string `json:"questionNumber" binding:"required"`
	Message        string `json:"message" binding:"required"`
}

// Tutor godoc
// @Summary AI 辅导对话（SSE）
// @Description 针对某道题提问，回复以 Server-Sent Events 流式返回。事件 data 为增量文本，结束事件为 [DONE]。
// @Tags 辅导
// @Accept  json
// @Produce  text/event-stream
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Param   body body TutorRequest true "提问内容"
// @Success 200 {string} string "SSE 流"
// @Failure 404 {object} util.Response "试卷或题目不存在"
// @Failure 409 {object} util.Response "试卷仍在处理中"
// @Router /api/exams/{examId}/tutor [post]
func (c *ChatController) Tutor(ctx *gin.Context) {
	var req TutorRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)

	ctx.Writer.Header().Set("Content-Type", "text/event-stream")
	ctx.Writer.Header().Set("Cache-Control", "no-cache")
	ctx.Writer.Header().Set("Connection", "keep-alive")
	ctx.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher := ctx.Writer
	streamed := false

	err := c.ChatService.Tutor(ctx.Request.Context(), claims.UserID, ctx.Param("examId"), req.QuestionNumber, req.Message,
		func(delta string) error {
			streamed = true
			if _, err := fmt.Fprintf(flusher, "data: %s\n\n", sseEscape(delta)); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
	if err != nil && !streamed {
		// 流还没开始就失败，仍可回常规 JSON 错误
		respondExamError(ctx, err)
		return
	}
	if err != nil {
		fmt.Fprintf(flusher, "event: error\ndata: %s\n\n", err.Error())
	}
	fmt.Fprint(flusher, "data: [DONE]\n\n")
	flusher.Flush()
}

// History godoc
// @Summary 某题辅导历史
// @Tags 辅导
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Param   questionNumber query string true "题号"
// @Success 200 {object} util.Response{data=[]model.ChatMessage}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/exams/{examId}/tutor/history [get]
func (c *ChatController) History(ctx *gin.Context) {
	questionNumber := ctx.Query("questionNumber")
	if questionNumber == "" {
		util.BadRequest(ctx, "缺少 questionNumber")
		return
	}

	claims := util.GetUserFromContext(ctx)
	history, err := c.ChatService.History(ctx.Request.Context(), claims.UserID, ctx.Param("examId"), questionNumber)
	if err != nil {
		respondExamError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// sseEscape SSE data 行不能包含裸换行，拆成多个 data 行
func sseEscape(s string) string {
	result := ""
	for i, line := range splitLines(s) {
		if i > 0 {
			result += "\ndata: "
		}
		result += line
	}
	return result
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
