package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/router"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	cleanup     *share.CleanupScheduler
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	// 初始化 Redis 连接
	redisClient, err := setup.InitRedis(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// 初始化存储后端
	storageSvc, err := storage.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage service: %w", err)
	}

	// 初始化 Repositories
	redisCache := cache.NewRedisCache(redisClient)
	fileRepo := repositories.NewFileRepository(mysqlDB, redisCache)
	userRepo := repositories.NewUserRepository(mysqlDB)

	// 初始化 Services
	tracker := share.NewProgressTracker()
	shareService := share.NewShareService(fileRepo, storageSvc, tracker, cfg)
	authService := admin.NewAuthService(userRepo, cfg)

	// 初始化 Gin 引擎和注册路由
	engine := router.InitRouter(authService, shareService, cfg)

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		engine:      engine,
		httpServer:  httpServer,
		db:          mysqlDB,
		redisClient: redisClient,
		cleanup:     share.NewCleanupScheduler(shareService, cfg.Share.CleanupInterval),
	}, nil
}

// Run 启动服务器和后台清理任务，并处理优雅关机
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	defer s.redisClient.Close()

	// 后台清理循环随服务生命周期运行
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go s.cleanup.Run(cleanupCtx)

	go func() {
		logger.Info("Server is running", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")
	cancelCleanup()

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
