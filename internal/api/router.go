package api

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/api/handlers"
	"github.com/pinkalP4120/order-metafields/internal/api/middleware"
	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/repository"
	"github.com/pinkalP4120/order-metafields/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, submissions *service.SubmissionService, repos *repository.Repositories, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(middleware.RequestID())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":      "Order Metafields API",
			"storage_mode": cfg.Metafields.Mode,
			"endpoints": []string{
				"GET /health",
				"POST /submit-form",
				"GET /v1/admin/submissions",
				"GET /v1/admin/submissions/:id",
				"GET /v1/admin/orders/:name/metafields",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/submit-form",
		middleware.IdempotencyMiddleware(repos.IdempotencyKey, logger),
		handlers.HandleSubmitForm(submissions, logger),
	)

	adminRoutes := router.Group("/v1/admin")
	adminRoutes.Use(middleware.AdminAuthMiddleware(cfg.API.AdminKeyHash, logger))
	{
		adminRoutes.GET("/submissions", handlers.HandleListSubmissions(submissions, logger))
		adminRoutes.GET("/submissions/:id", handlers.HandleGetSubmission(submissions, logger))
		adminRoutes.GET("/orders/:name/metafields", handlers.HandleGetOrderMetafields(submissions, logger))
	}

	return router
}

// corsMiddleware allows the storefront to post the form from the browser
func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal server error",
			"error":   fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
}
