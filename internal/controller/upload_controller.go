package controller

import (
	"errors"
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/internal/util"
	"io"

	"github.com/gin-gonic/gin"
)

type UploadController struct {
	UploadService *service.UploadService
}

func NewUploadController(uploadService *service.UploadService) *UploadController {
	return &UploadController{UploadService: uploadService}
}

// PresignRequest 预签名直传请求
// swagger:model PresignRequest
type PresignRequest struct {
	Filename string `json:"filename" binding:"required"`
	FileSize int64  `json:"fileSize" binding:"required,gt=0"`
}

// Presign godoc
// @Summary 申请试卷直传地址
// @Description 创建待处理试卷并签发对象存储直传地址，客户端 PUT 完成后调用确认接口
// @Tags 上传
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body PresignRequest true "文件信息"
// @Success 200 {object} util.Response{data=service.PresignedUpload}
// @Failure 400 {object} util.Response "文件不合法或超出大小限制"
// @Router /api/uploads/presign [post]
func (c *UploadController) Presign(ctx *gin.Context) {
	var req PresignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.UploadService.RequestPresignedUpload(ctx.Request.Context(), claims.UserID, req.Filename, req.FileSize)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, result)
}

// Confirm godoc
// @Summary 确认直传完成
// @Description 校验对象存在与 PDF 合法性，去重后启动异步提取管线
// @Tags 上传
// @Produce  json
// @Security BearerAuth
// @Param   examId path string true "试卷 ID"
// @Success 200 {object} util.Response{data=service.ConfirmResult}
// @Failure 400 {object} util.Response "文件未上传或不是合法 PDF"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/uploads/{examId}/confirm [post]
func (c *UploadController) Confirm(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.UploadService.ConfirmUpload(ctx.Request.Context(), ctx.Param("examId"), claims.UserID)
	if err != nil {
		respondUploadError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Direct godoc
// @Summary 服务端直收上传
// @Description multipart 表单上传 PDF，本地存储或不支持直传的客户端使用
// @Tags 上传
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "PDF 文件"
// @Success 200 {object} util.Response{data=service.ConfirmResult}
// @Failure 400 {object} util.Response "文件不合法"
// @Router /api/upload/direct [post]
func (c *UploadController) Direct(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.UploadService.DirectUpload(ctx.Request.Context(), claims.UserID, fileHeader.Filename, data)
	if err != nil {
		respondUploadError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func respondUploadError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrExamNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrFileNotInStorage),
		errors.Is(err, util.ErrInvalidPDF),
		errors.Is(err, util.ErrTooManyPages):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
