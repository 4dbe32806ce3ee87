package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"camps-pdf/internal/config"
	"camps-pdf/internal/db"
	"camps-pdf/internal/email"
	apihttp "camps-pdf/internal/http"
	"camps-pdf/internal/repository"
	"camps-pdf/internal/service"
	"camps-pdf/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := db.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	docRepo := repository.NewPgDocumentRepository(pool)
	auditRepo := repository.NewPgAuditLogRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	loginLimiter := service.NewLoginRateLimiter(10*time.Minute, 10)
	var tokenStore service.RefreshTokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, 10*time.Minute, 10)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		logger.Fatal("temp dir", zap.Error(err))
	}
	var store storage.Backend
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewS3Backend(ctx, storage.S3Options{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		store, err = storage.NewLocalBackend(cfg.StorageDir)
	}
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}

	pdfSvc := service.NewPDFService(cfg.CompanyName, cfg.DefaultLocation)
	validator := service.NewMetadataValidator()
	userSvc := service.NewUserService(logger, userRepo, emailSender, loginLimiter)
	docSvc := service.NewDocumentService(logger, docRepo, auditRepo, store, pdfSvc, validator,
		cfg.TempDir, cfg.IDPrefix, cfg.DefaultLocation)
	analyticsSvc := service.NewAnalyticsService(logger, docRepo, auditRepo, userRepo)
	batchProc := service.NewBatchProcessor(logger, docRepo, auditRepo, validator, cfg.BatchWorkers)
	defer batchProc.Close()

	if err := userSvc.EnsureDefaultAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Warn("seeding default admin failed", zap.Error(err))
	}

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc, auditRepo)
	docHandler := apihttp.NewDocumentHandler(logger, docSvc, cfg.TempDir, int(cfg.MaxUploadSizeMB))
	analyticsHandler := apihttp.NewAnalyticsHandler(logger, analyticsSvc)
	batchHandler := apihttp.NewBatchHandler(logger, batchProc)
	router := apihttp.NewRouter(logger, jwtSvc, userSvc, authHandler, docHandler, analyticsHandler, batchHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
