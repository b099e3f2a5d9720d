package app

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/controller"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/security"
	"learnhub_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	cfgMu           sync.RWMutex
	config          *config.Config
	configCallbacks []func(*config.Config)

	services *services
	tracer   *sdktrace.TracerProvider
}

type repositories struct {
	user          *repository.UserRepository
	course        *repository.CourseRepository
	enrollment    *repository.EnrollmentRepository
	completion    *repository.CompletionRepository
	progressCache *repository.DocumentProgressCache
	quiz          *repository.QuizRepository
	quizAttempt   *repository.QuizAttemptRepository
}

type services struct {
	auth     *service.AuthService
	storage  *service.StorageService
	ai       *service.AIService
	course   *service.CourseService
	progress *service.ProgressService
	quiz     *service.QuizService
	coaching *service.CoachingService
	seed     *service.SeedService
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	adminCourse *controller.AdminCourseController
	progress    *controller.ProgressController
	quiz        *controller.QuizController
	coaching    *controller.CoachingController
	storage     *controller.StorageController
	health      *controller.HealthController
}

// Config 当前生效的配置
func (a *App) Config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.config
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 替换配置并通知各服务，运行时标志沿用启动时的值
func (a *App) ReloadConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	old := a.config
	cfg.ForceMigrate = old.ForceMigrate
	cfg.MigrateOnly = old.MigrateOnly
	cfg.SeedFile = old.SeedFile
	a.config = cfg
	a.cfgMu.Unlock()

	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		completion:  repository.NewCompletionRepository(db),
		quiz:        repository.NewQuizRepository(db),
		quizAttempt: repository.NewQuizAttemptRepository(db),
	}
	if rdb != nil {
		repos.progressCache = repository.NewDocumentProgressCache(rdb)
	}
	return repos
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config) (*services, error) {
	s := &services{}

	provider, err := service.NewStorageProvider(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = service.NewStorageService(provider, cfg.Storage)
	for _, bucket := range util.Buckets {
		s.storage.EnsureBucket(ctx, bucket)
	}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.ai = service.NewAIService(cfg.AI)
	s.course = service.NewCourseService(repos.course, repos.enrollment, s.storage)

	// Redis 未启用时只使用数据库
	var mirror service.CompletionStore
	if repos.progressCache != nil {
		mirror = repos.progressCache
	}
	s.progress = service.NewProgressService(repos.course, repos.enrollment, repos.completion, mirror)

	s.quiz = service.NewQuizService(repos.quiz, repos.quizAttempt, s.ai)

	var joiner service.CallJoiner
	if cfg.Tavus.CallGatewayURL != "" {
		joiner = service.NewWebsocketCallJoiner(cfg.Tavus.CallGatewayURL)
	}
	s.coaching = service.NewCoachingService(repos.course, s.quiz, service.NewTavusClient(cfg.Tavus), cfg.Tavus.ResultCoachReplicaID, joiner)

	s.seed = service.NewSeedService(s.auth, s.course, s.quiz)

	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.auth.UpdateJWT(cfg.JWT)
		s.ai.UpdateConfig(cfg.AI)
		s.coaching.UpdateTavus(service.NewTavusClient(cfg.Tavus), cfg.Tavus.ResultCoachReplicaID)
	})

	return s, nil
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.course, s.progress),
		adminCourse: controller.NewAdminCourseController(s.course),
		progress:    controller.NewProgressController(s.progress),
		quiz:        controller.NewQuizController(s.quiz),
		coaching:    controller.NewCoachingController(s.coaching),
		storage:     controller.NewStorageController(s.storage),
		health:      controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) migrate(db *gorm.DB, cfg *config.Config) {
	// release 模式只在显式要求或表缺失时迁移
	if cfg.Server.Mode == "release" && !cfg.ForceMigrate && !database.NeedsMigration(db) {
		return
	}
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{config: cfg, DB: db}

	app.migrate(db, cfg)
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			// 完成状态以数据库为准，Redis 不可用时降级运行
			logger.Log.Warn("Redis unavailable, document progress mirror disabled", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("learnhub-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	monitoring.Init()

	repos := app.initRepositories(db, app.Redis)
	svc, err := app.initServices(context.Background(), repos, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	app.services = svc

	if cfg.SeedFile != "" {
		if _, err := svc.seed.SeedFile(context.Background(), cfg.SeedFile); err != nil {
			logger.Log.Fatal("Failed to seed database", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
	}

	controllers := app.initControllers(svc)

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) shutdown() {
	if a.services != nil && a.services.coaching != nil {
		a.services.coaching.Shutdown()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config().Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config().Server.Port)
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

	// 离开仍在进行的教练通话
	a.shutdown()

	log.Println("Server exiting")
}
