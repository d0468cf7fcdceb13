// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echo-link-go/internal/config"
	"echo-link-go/internal/handler"
	"echo-link-go/internal/middleware"
	"echo-link-go/internal/pipeline"
	"echo-link-go/internal/repository"
	"echo-link-go/internal/service"
	"echo-link-go/pkg/database"
	"echo-link-go/pkg/discord"
	"echo-link-go/pkg/kafka"
	"echo-link-go/pkg/log"
	"echo-link-go/pkg/mail"
	"echo-link-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := database.AutoMigrate(database.DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	accountRepo := repository.NewAccountRepository(database.DB)
	identityRepo := repository.NewIdentityRepository(database.DB)
	linkRepo := repository.NewLinkRequestRepository(database.DB)
	fileRepo := repository.NewFileRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	mailSender := mail.NewSender(cfg.Email)
	discordClient := discord.NewClient(cfg.Discord)
	accountService := service.NewAccountService(database.DB, accountRepo, identityRepo, fileRepo)
	identityService := service.NewIdentityService(identityRepo, accountService)
	linkService := service.NewLinkService(database.DB, linkRepo, identityRepo, accountService)
	limitsService := service.NewLimitsService(cfg.Limits, accountRepo)
	userService := service.NewUserService(cfg.MagicLink, cfg.Public, userRepo, fileRepo, mailSender)
	fileService := service.NewFileService(cfg.Files, cfg.Public, cfg.MinIO, fileRepo, limitsService)
	sessionService := service.NewSessionService(cfg.Discord, sessionRepo, identityService, fileService, discordClient)

	// 6. 初始化缩略图处理管道 (Processor)
	processor := pipeline.NewProcessor(cfg.MinIO, fileRepo)

	// 7. 启动后台 Kafka 消费者与定时清理任务
	go kafka.StartConsumer(cfg.Kafka, processor)

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go runCleanupLoop(cleanupCtx, fileService, sessionService, linkRepo, userRepo)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	authHandler := handler.NewAuthHandler(userService)
	uploadHandler := handler.NewUploadHandler(fileService)
	fileHandler := handler.NewFileHandler(fileService, cfg.MinIO)
	meHandler := handler.NewMeHandler(accountService, identityService, linkService)
	discordHandler := handler.NewDiscordHandler(sessionService, linkService, cfg.Public)
	statsHandler := handler.NewStatsHandler(userService, accountService, fileService, limitsService)
	healthHandler := handler.NewHealthHandler(database.DB, cfg.MinIO)

	authed := middleware.AuthMiddleware(userService, identityService)
	botAuthed := middleware.BotAuthMiddleware(cfg.Discord.BotToken)

	// 公开路由
	r.GET("/health", healthHandler.Check)
	r.GET("/v/:id", fileHandler.ShareRedirect)
	r.OPTIONS("/files/*path", fileHandler.ServePreflight)
	r.GET("/files/*path", fileHandler.Serve)

	// 魔法链接登录
	auth := r.Group("/auth")
	{
		auth.POST("/request", middleware.EmailRateLimiter(cfg.MagicLink.RateLimitPerHour), authHandler.RequestMagicLink)
		auth.GET("/verify", authHandler.VerifyMagicLink)
	}

	// 需要上传令牌认证的路由
	r.POST("/upload", authed, uploadHandler.Upload)
	r.DELETE("/delete/:id", authed, fileHandler.Delete)

	me := r.Group("/me", authed)
	{
		me.POST("/discord/link/start", meHandler.StartDiscordLink)
		me.GET("/discord/link/status", meHandler.DiscordLinkStatus)
		me.GET("/identities", meHandler.GetIdentities)
		me.DELETE("/discord/unlink/:identityId", meHandler.UnlinkDiscord)
	}

	stats := r.Group("/stats", authed)
	{
		stats.GET("/me", statsHandler.Me)
		stats.GET("/account", statsHandler.Account)
		stats.GET("/global", statsHandler.Global)
	}

	// Discord 机器人与会话上传路由
	discordGroup := r.Group("/discord")
	{
		discordGroup.POST("/upload-session", botAuthed, discordHandler.CreateUploadSession)
		discordGroup.POST("/link", botAuthed, discordHandler.LinkAccount)
		discordGroup.GET("/upload/:token", discordHandler.UploadRedirect)
		discordGroup.GET("/session/:token", discordHandler.GetSession)
		discordGroup.POST("/upload/:token", discordHandler.SessionUpload)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// runCleanupLoop 每小时清理一次过期数据：
// 过期文件及其存储对象、超时的 Discord 会话、过期的绑定码与魔法链接。
func runCleanupLoop(ctx context.Context, fileSvc service.FileService, sessionSvc service.SessionService, linkRepo repository.LinkRequestRepository, userRepo repository.UserRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if count, err := fileSvc.CleanupExpired(ctx); err != nil {
			log.Errorf("清理过期文件失败: %v", err)
		} else if count > 0 {
			log.Infof("已清理 %d 个过期文件", count)
		}

		if count, err := sessionSvc.ExpireStale(); err != nil {
			log.Errorf("清理过期会话失败: %v", err)
		} else if count > 0 {
			log.Infof("已过期 %d 个超时会话", count)
		}

		now := time.Now()
		// 保留一天宽限期，方便排查刚过期的绑定请求
		if count, err := linkRepo.DeleteExpiredBefore(now.Add(-24 * time.Hour)); err != nil {
			log.Errorf("清理过期绑定码失败: %v", err)
		} else if count > 0 {
			log.Infof("已清理 %d 个过期绑定码", count)
		}

		if count, err := userRepo.DeleteExpiredMagicLinks(now); err != nil {
			log.Errorf("清理过期魔法链接失败: %v", err)
		} else if count > 0 {
			log.Infof("已清理 %d 个过期魔法链接", count)
		}
	}
}
