package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas del panel.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userSvc *service.UserService,
	authH *AuthHandler,
	docH *DocumentHandler,
	analyticsH *AnalyticsHandler,
	batchH *BatchHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	authed := JWTAuthMiddleware(jwtSvc)
	canRead := RequirePermission(userSvc, domain.PermissionRead)
	canCreate := RequirePermission(userSvc, domain.PermissionCreate)
	canUpdate := RequirePermission(userSvc, domain.PermissionUpdate)
	manageUsers := RequirePermission(userSvc, domain.PermissionManageUsers)

	auth := r.Group("/api/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.GET("/me", authed, authH.Me)
	auth.POST("/change-password", authed, authH.ChangePassword)
	auth.GET("/users", authed, manageUsers, authH.ListUsers)
	auth.POST("/users", authed, manageUsers, authH.CreateUser)
	auth.PUT("/users/:id", authed, manageUsers, authH.UpdateUser)
	auth.DELETE("/users/:id", authed, manageUsers, authH.DeleteUser)

	docs := r.Group("/api/documents", authed)
	docs.POST("/upload", canCreate, docH.Upload)
	docs.GET("", canRead, docH.List)
	docs.GET("/stats", canRead, docH.Stats)
	docs.GET("/:id", canRead, docH.Get)
	docs.POST("/:id/metadata", canUpdate, docH.AddMetadata)
	docs.GET("/:id/download", canRead, docH.Download)
	docs.DELETE("/:id", canCreate, docH.Delete)

	analytics := r.Group("/api/analytics", authed, canRead)
	analytics.GET("/dashboard/summary", analyticsH.Summary)
	analytics.GET("/charts/documents-timeline", analyticsH.Timeline)
	analytics.GET("/charts/documents-by-type", analyticsH.ByType)
	analytics.GET("/charts/signature-status", analyticsH.SignatureStatus)
	analytics.GET("/reports/export", analyticsH.Export)

	batch := r.Group("/api/batch", authed)
	batch.POST("/metadata", canUpdate, batchH.SubmitMetadata)
	batch.GET("/tasks/:id", canRead, batchH.TaskStatus)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en
// responses; las descargas de PDF lo sobreescriben en el handler.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
