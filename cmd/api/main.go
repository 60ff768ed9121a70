package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/school-api/internal/config"
	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/handler"
	"github.com/yourusername/school-api/internal/middleware"
	pgRepo "github.com/yourusername/school-api/internal/repository/postgres"
	"github.com/yourusername/school-api/internal/service"
	"github.com/yourusername/school-api/pkg/database"
	"github.com/yourusername/school-api/pkg/storage"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем хранилище файлов
	var store storage.Storage
	switch cfg.Storage.Driver {
	case "supabase":
		store, err = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.SupabaseBucket)
	default:
		store, err = storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
	}
	if err != nil {
		log.Printf("Failed to initialize storage: %v", err)
		os.Exit(1)
	}

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	otpRepo := pgRepo.NewOtpRepo(db)
	tokenRepo := pgRepo.NewAccessTokenRepo(db)
	schoolRepo := pgRepo.NewSchoolRepo(db)

	// Инициализируем сервис почты
	var emailService service.EmailService
	if cfg.Email.Enabled {
		emailService, err = service.NewResendEmailService(cfg.Email.APIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("Email sending is disabled, using noop email service")
		emailService = &service.NoopEmailService{}
	}

	// Инициализируем сервисы
	otpService, err := service.NewOtpService(db, otpRepo, userRepo, cfg.Otp.TTL)
	if err != nil {
		log.Printf("Failed to initialize OtpService: %v", err)
		os.Exit(1)
	}
	tokenService, err := service.NewTokenService(tokenRepo, userRepo)
	if err != nil {
		log.Printf("Failed to initialize TokenService: %v", err)
		os.Exit(1)
	}
	onboardingService, err := service.NewOnboardingService(db, schoolRepo, store)
	if err != nil {
		log.Printf("Failed to initialize OnboardingService: %v", err)
		os.Exit(1)
	}
	verificationService, err := service.NewVerificationService(db, schoolRepo, userRepo, emailService, store)
	if err != nil {
		log.Printf("Failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}
	authService, err := service.NewAuthService(userRepo, otpService, tokenService, emailService, onboardingService)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	// Контекст жизненного цикла фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновая очистка просроченных кодов верификации
	go func() {
		interval := cfg.Otp.CleanupInterval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("Запуск периодической очистки просроченных кодов верификации (каждые %s)", interval)

		for {
			select {
			case <-ticker.C:
				if _, err := otpService.CleanupExpired(ctx); err != nil {
					log.Printf("Ошибка при очистке просроченных кодов: %v", err)
				}
			case <-ctx.Done():
				log.Println("Завершение работы горутины очистки кодов")
				return
			}
		}
	}()

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService)
	emailVerificationHandler := handler.NewEmailVerificationHandler(authService, otpService)
	onboardingHandler := handler.NewOnboardingHandler(onboardingService)
	adminVerificationHandler := handler.NewAdminVerificationHandler(verificationService)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Локальное хранилище логотипов отдаем как статику
	if cfg.Storage.Driver != "supabase" {
		router.Static(cfg.Storage.LocalBaseURL, cfg.Storage.LocalDir)
	}

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			strictLimit := rateLimiter.Limit(middleware.StrictAuthRateLimitConfig())
			authGroup.POST("/register", strictLimit, authHandler.Register)
			authGroup.POST("/login", strictLimit, authHandler.Login)

			authed := authGroup.Group("/")
			authed.Use(authMiddleware.RequireAuth())
			{
				authed.POST("/logout", authHandler.Logout)
				authed.GET("/me", authHandler.Me)
			}
		}

		// Подтверждение email: доступно токенам с ability email-verification
		emailGroup := api.Group("/email")
		emailGroup.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAbility(entity.AbilityEmailVerification))
		{
			emailGroup.POST("/verify-otp", emailVerificationHandler.VerifyOtp)
			emailGroup.POST("/resend",
				rateLimiter.Limit(middleware.OtpResendRateLimitConfig()),
				emailVerificationHandler.Resend)
		}

		// Онбординг школы: только верифицированные администраторы
		onboarding := api.Group("/onboarding")
		onboarding.Use(authMiddleware.RequireAuth(), authMiddleware.RequireVerifiedAdmin())
		{
			onboarding.GET("/status", onboardingHandler.GetStatus)
			onboarding.POST("/step1", onboardingHandler.Step1)
			onboarding.POST("/step2", onboardingHandler.Step2)
			onboarding.POST("/complete", onboardingHandler.Complete)
			onboarding.GET("/verification-status", onboardingHandler.VerificationStatus)
		}

		// Панель проверки школ: только супер-администраторы
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.SuperAdminOnly())
		{
			admin.GET("/schools/pending", adminVerificationHandler.PendingSchools)
			admin.POST("/schools/:id/verify", adminVerificationHandler.VerifySchool)
			admin.GET("/schools/stats", adminVerificationHandler.Stats)
			admin.GET("/schools/export", adminVerificationHandler.ExportPending)
			admin.GET("/otp/stats", emailVerificationHandler.Stats)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
