package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// shareErrorResponse 将服务层错误映射为统一的 HTTP 响应
func shareErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerr.ErrShareNotFound):
		response.Error(c, http.StatusNotFound, xerr.ShareNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrShareExpired):
		response.Error(c, http.StatusGone, xerr.ShareExpiredCode, err.Error())
	case errors.Is(err, xerr.ErrShareExhausted):
		response.Error(c, http.StatusGone, xerr.ShareExhaustedCode, err.Error())
	case errors.Is(err, xerr.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, xerr.FileTooLargeCode, err.Error())
	case errors.Is(err, xerr.ErrRetentionOutOfRange):
		response.Error(c, http.StatusBadRequest, xerr.RetentionOutOfRangeCode, err.Error())
	case errors.Is(err, xerr.ErrInvalidMaxDownloads):
		response.Error(c, http.StatusBadRequest, xerr.InvalidMaxDownloadsCode, err.Error())
	case errors.Is(err, xerr.ErrFileNameInvalid):
		response.Error(c, http.StatusBadRequest, xerr.FileNameInvalidCode, err.Error())
	case errors.Is(err, xerr.ErrInvalidParams):
		response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
	case errors.Is(err, xerr.ErrPermissionDenied):
		response.Error(c, http.StatusForbidden, xerr.PermissionDeniedCode, err.Error())
	case errors.Is(err, xerr.ErrUploadNotFound):
		response.Error(c, http.StatusNotFound, xerr.UploadNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrTokenConflict):
		response.Error(c, http.StatusConflict, xerr.TokenConflictCode, err.Error())
	case errors.Is(err, xerr.ErrObjectNotFound):
		// 记录存在但对象丢失，元数据与存储不一致
		response.Error(c, http.StatusInternalServerError, xerr.StorageDesyncCode, xerr.ErrStorageError.Error())
	default:
		response.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, xerr.ErrInternalServer.Error())
	}
}

// shareView 组装返回给客户端的分享信息
func shareView(cfg *config.Config, file *models.File) gin.H {
	return gin.H{
		"id":             file.ID,
		"token":          file.Token,
		"filename":       file.FileName,
		"size":           file.Size,
		"mime_type":      file.MimeType,
		"max_downloads":  file.MaxDownloads,
		"download_count": file.DownloadCount,
		"expires_at":     file.ExpiresAt,
		"created_at":     file.CreatedAt,
		"download_url":   shareURL(cfg, file.Token),
	}
}

func shareURL(cfg *config.Config, token string) string {
	base := strings.TrimRight(cfg.Server.BaseURL, "/")
	return fmt.Sprintf("%s/share/%s", base, token)
}

// @Summary 上传文件并创建分享
// @Description 上传文件，生成带下载次数和有效期限制的分享链接
// @Tags 文件分享
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "上传的文件"
// @Param retention_days formData int true "保留天数"
// @Param max_downloads formData int false "最大下载次数，缺省为不限"
// @Param upload_id formData string false "客户端上传标识，用于查询进度"
// @Security ApiKeyAuth
// @Success 201 {object} response.Response "分享创建成功"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 413 {object} response.Response "文件过大"
// @Router /api/v1/files/upload [post]
func UploadFile(shareService share.ShareService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		currentUserID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, fmt.Sprintf("Failed to get file from form: %v", err))
			return
		}

		retentionDays, err := strconv.Atoi(c.PostForm("retention_days"))
		if err != nil {
			response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "Invalid retention_days")
			return
		}

		var maxDownloads *int64
		if raw := c.PostForm("max_downloads"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "Invalid max_downloads")
				return
			}
			maxDownloads = &parsed
		}

		// 客户端没给上传标识就生成一个，便于返回后继续关联
		uploadID := c.PostForm("upload_id")
		if uploadID == "" {
			uploadID = uuid.New().String()
		}

		req := &share.UploadRequest{
			FileName:      fileHeader.Filename,
			Size:          fileHeader.Size,
			ContentType:   fileHeader.Header.Get("Content-Type"),
			RetentionDays: retentionDays,
			MaxDownloads:  maxDownloads,
			UploadID:      uploadID,
			Open: func() (io.ReadCloser, error) {
				return fileHeader.Open()
			},
		}

		file, err := shareService.Upload(c.Request.Context(), currentUserID, req)
		if err != nil {
			shareErrorResponse(c, err)
			return
		}

		view := shareView(cfg, file)
		view["upload_id"] = uploadID
		response.Success(c, http.StatusCreated, "File uploaded successfully", view)
	}
}

// @Summary 我的分享列表
// @Description 列出当前用户仍然有效的分享
// @Tags 文件分享
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response "分享列表"
// @Router /api/v1/files [get]
func ListUserFiles(shareService share.ShareService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		currentUserID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}

		files, err := shareService.ListUserFiles(c.Request.Context(), currentUserID)
		if err != nil {
			shareErrorResponse(c, err)
			return
		}

		views := make([]gin.H, 0, len(files))
		for i := range files {
			views = append(views, shareView(cfg, &files[i]))
		}
		response.Success(c, http.StatusOK, "Files listed successfully", views)
	}
}

// @Summary 删除分享
// @Description 删除自己的分享，存储对象与记录一并移除
// @Tags 文件分享
// @Produce json
// @Param file_id path int true "分享记录ID"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response "删除成功"
// @Failure 403 {object} response.Response "无权操作"
// @Failure 404 {object} response.Response "分享不存在"
// @Router /api/v1/files/{file_id} [delete]
func DeleteFile(shareService share.ShareService) gin.HandlerFunc {
	return func(c *gin.Context) {
		currentUserID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}

		fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "Invalid file_id")
			return
		}

		if err := shareService.DeleteUserFile(c.Request.Context(), currentUserID, fileID); err != nil {
			shareErrorResponse(c, err)
			return
		}
		response.Success(c, http.StatusOK, "File deleted successfully", nil)
	}
}

// @Summary 上传进度查询
// @Description 查询进行中上传的进度百分比
// @Tags 文件分享
// @Produce json
// @Param upload_id path string true "上传标识"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response "进度百分比"
// @Failure 404 {object} response.Response "上传不存在或已结束"
// @Router /api/v1/files/upload/progress/{upload_id} [get]
func UploadProgress(shareService share.ShareService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIDFromContext(c); !ok {
			return
		}

		percent, err := shareService.UploadProgress(c.Param("upload_id"))
		if err != nil {
			shareErrorResponse(c, err)
			return
		}
		response.Success(c, http.StatusOK, "OK", gin.H{"percent": percent})
	}
}
