package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/TIANLI0/ShipKit/handler"
	"github.com/TIANLI0/ShipKit/middleware"
	"github.com/TIANLI0/ShipKit/service"
	"github.com/TIANLI0/ShipKit/store"
	"github.com/TIANLI0/ShipKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting ShipKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("optimizer_version", service.OptimizerVersion))

	ctx := context.Background()

	// 初始化缓存
	var cache service.ResultCache = service.NopCache{}
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis, utils.Logger)
		if err := redisService.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			redisService.Close()
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisService
			defer redisService.Close()
		}
	}

	// 初始化数据库记录
	var recorder handler.Recorder = handler.NopRecorder{}
	var reader handler.ImageReader
	if cfg.Database.DSN != "" {
		db, err := store.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			utils.Logger.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		if err := store.Migrate(db, utils.Logger); err != nil {
			utils.Logger.Fatal("failed to migrate database", zap.Error(err))
		}
		imageStore := store.NewProcessedImageStore(db)
		recorder = imageStore
		reader = imageStore
		utils.Logger.Info("database connected successfully")
	} else {
		utils.Logger.Info("database dsn not set, processed images will not be recorded")
	}

	// 初始化优化流程
	segmenter, err := service.NewSegmenter(&cfg.GrabCut, utils.Logger)
	if err != nil {
		utils.Logger.Fatal("invalid segmentation config", zap.Error(err))
	}
	optimizer := service.NewOptimizer(&cfg.Optimizer, segmenter, utils.Logger)
	limiter := service.NewProcessLimiter(cfg.GrabCut.MaxConcurrent, time.Duration(cfg.GrabCut.QueueTimeout)*time.Second)

	// 初始化Handler
	optimizeHandler := handler.NewOptimizeHandler(cfg, cache, optimizer, limiter, recorder)
	variantHandler := handler.NewVariantHandler(cfg)
	imageHandler := handler.NewImageHandler(reader)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":           Version,
			"build_time":        BuildTime,
			"build_id":          BuildID,
			"git_commit":        GitCommit,
			"git_branch":        GitBranch,
			"optimizer_version": service.OptimizerVersion,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/optimize", optimizeHandler.Optimize)
		api.GET("/optimize/:md5", optimizeHandler.GetByMD5)
		api.POST("/variants", variantHandler.Generate)
		api.GET("/images/history", imageHandler.History)
		api.GET("/images/:id", imageHandler.GetByID)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server forced to shutdown", zap.Error(err))
	}
}
