package app

import (
	"context"
	"exam_tutor_backend/internal/config"
	"exam_tutor_backend/internal/controller"
	"exam_tutor_backend/internal/repository"
	"exam_tutor_backend/internal/service"
	"exam_tutor_backend/pkg/configwatcher"
	"exam_tutor_backend/pkg/database"
	"exam_tutor_backend/pkg/logger"
	"exam_tutor_backend/pkg/monitoring"
	"exam_tutor_backend/pkg/security"
	"exam_tutor_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user   *repository.UserRepository
	exam   *repository.ExamRepository
	answer *repository.AnswerRepository
	chat   *repository.ChatRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	ocr       *service.OcrService
	ai        *service.AIService
	enrich    *service.EnrichmentService
	answerKey *service.AnswerKeyService
	image     *service.ImageService
	processor *service.ProcessorService
	upload    *service.UploadService
	exam      *service.ExamService
	answer    *service.AnswerService
	chat      *service.ChatService
	export    *service.ExportService
	reconcile *service.ReconcileService
}

type controllers struct {
	auth   *controller.AuthController
	upload *controller.UploadController
	exam   *controller.ExamController
	answer *controller.AnswerController
	chat   *controller.ChatController
	export *controller.ExportController
	health *controller.HealthController
	admin  *controller.AdminController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:   repository.NewUserRepository(db),
		exam:   repository.NewExamRepository(db),
		answer: repository.NewAnswerRepository(db),
		chat:   repository.NewChatRepository(db, rdb),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)

	s.ocr = service.NewOcrService(cfg.OCR)
	s.ai = service.NewAIService(cfg.AI)
	s.enrich = service.NewEnrichmentService(s.ai, cfg.AI)
	s.answerKey = service.NewAnswerKeyService(s.ai, cfg.AI, cfg.Pipeline)
	s.image = service.NewImageService(s.ai, s.storage)
	s.processor = service.NewProcessorService(repos.exam, s.storage, s.ocr, s.enrich, s.answerKey, s.image)

	s.upload = service.NewUploadService(repos.exam, s.storage, s.processor, cfg.Upload)
	s.exam = service.NewExamService(repos.exam, s.storage)
	s.answer = service.NewAnswerService(repos.exam, repos.answer, s.ai, cfg.AI)
	s.chat = service.NewChatService(repos.exam, repos.chat, s.ai, cfg.AI)
	s.export = service.NewExportService(repos.exam)
	s.reconcile = service.NewReconcileService(repos.exam, s.storage)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		upload: controller.NewUploadController(s.upload),
		exam:   controller.NewExamController(s.exam),
		answer: controller.NewAnswerController(s.answer),
		chat:   controller.NewChatController(s.chat),
		export: controller.NewExportController(s.export),
		health: controller.NewHealthController(db, rdb),
		admin:  controller.NewAdminController(s.reconcile),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	interval := time.Duration(cfg.Pipeline.ReconcileIntervalMin) * time.Minute
	go func() {
		ticker := time.NewTicker(interval)
		for range ticker.C {
			s.reconcile.Run(context.Background())
		}
	}()

	// 配置热加载：限流、模型名等参数改动无需重启
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		updated, ok := newCfg.(*config.Config)
		if !ok {
			return
		}
		a.Config = updated
		for _, callback := range a.configCallbacks {
			callback(updated)
		}
		logger.Log.Info("配置已热加载")
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 只承担缓存职责，连不上时降级运行
		logger.Log.Warn("Redis unavailable, running without cache", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("exam-tutor", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
