package router

import (
	"net/http"

	_ "github.com/3Eeeecho/go-fileshare/docs"
	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fileshare/internal/middlewares"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func InitRouter(authService admin.AuthService, shareService share.ShareService, cfg *config.Config) *gin.Engine {
	router := gin.Default() // 包含 Logger 和 Recovery 中间件

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 公开下载路由，凭令牌访问，不需要认证
	router.GET("/share/:token", handlers.DownloadShared(shareService))

	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handlers.Register(authService))
			authGroup.POST("/login", handlers.Login(authService))
		}
		authGroup.GET("/me", middlewares.AuthMiddleware(cfg), handlers.Me(authService))

		// 文件分享路由，全部需要认证
		fileGroup := v1.Group("/files")
		fileGroup.Use(middlewares.AuthMiddleware(cfg))
		{
			fileGroup.GET("", handlers.ListUserFiles(shareService, cfg))
			fileGroup.POST("/upload", handlers.UploadFile(shareService, cfg))
			fileGroup.GET("/upload/progress/:upload_id", handlers.UploadProgress(shareService))
			fileGroup.DELETE("/:file_id", handlers.DeleteFile(shareService))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, http.StatusNotFound, "Route not found")
	})

	return router
}
