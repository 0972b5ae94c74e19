package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @Summary 下载分享文件
// @Description 公开接口，凭令牌下载文件，每次成功响应消耗一个下载名额
// @Tags 公开下载
// @Produce application/octet-stream
// @Param token path string true "下载令牌"
// @Success 200 {file} binary "文件内容"
// @Failure 404 {object} response.Response "分享不存在"
// @Failure 410 {object} response.Response "分享已过期或次数用完"
// @Router /share/{token} [get]
func DownloadShared(shareService share.ShareService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := c.Param("token")

		res, err := shareService.Download(c.Request.Context(), tok)
		if err != nil {
			shareErrorResponse(c, err)
			return
		}
		defer res.Reader.Close()

		mimeType := res.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		c.Header("Content-Type", mimeType)
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(res.File.FileName)))
		if res.Size >= 0 {
			c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
		}
		c.Status(http.StatusOK)

		// 响应头已发出，传输错误只能记录，名额已在核销时消耗
		if _, err := io.Copy(c.Writer, res.Reader); err != nil {
			logger.Warn("下载传输中断",
				zap.String("token", tok),
				zap.Error(err))
		}
	}
}
