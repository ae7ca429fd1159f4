package controller

import (
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
)

type ExportController struct {
	ExportService *service.ExportService
}

func NewExportController(exportService *service.ExportService) *ExportController {
	return &ExportController{ExportService: exportService}
}

// Export godoc
// @Summary 导出试卷为 Excel
// @Description 将提取出的题目表格化，供离线核对
// @Tags 试卷
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {file} binary "xlsx 文件"
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 409 {object} util.Response "试卷仍在处理中"
// @Router /api/exams/{examId}/export [get]
func (c *ExportController) Export(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	filename, data, err := c.ExportService.ExportExam(ctx.Param("examId"), claims.UserID)
	if err != nil {
		respondExamError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	ctx.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
