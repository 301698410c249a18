package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/seekwell/seekwell-backend/internal/http/handlers"
	"github.com/seekwell/seekwell-backend/internal/http/middleware"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *middleware.AuthMiddleware
	ChatHandler    *handlers.ChatHandler
	ModelsHandler  *handlers.ModelsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))
	router.Use(otelgin.Middleware("seekwell"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.Health)

	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Chat
	protected.POST("/chat/message", cfg.ChatHandler.Message)
	protected.POST("/chat/retry", cfg.ChatHandler.Retry)
	protected.POST("/chat/stop", cfg.ChatHandler.Stop)
	protected.GET("/chat", cfg.ChatHandler.Get)
	protected.GET("/chat/history", cfg.ChatHandler.History)
	protected.GET("/chat/favorites", cfg.ChatHandler.Favorites)
	protected.POST("/chat/rename", cfg.ChatHandler.Rename)
	protected.POST("/chat/delete", cfg.ChatHandler.Delete)
	protected.POST("/chat/bookmark", cfg.ChatHandler.Bookmark)
	protected.GET("/chat/trace", cfg.ChatHandler.Trace)
	protected.POST("/chat/feedback", cfg.ChatHandler.Feedback)
	protected.POST("/chat/followup-questions", cfg.ChatHandler.FollowUpQuestions)
	protected.POST("/chat/title", cfg.ChatHandler.Title)

	// Models
	protected.GET("/models", cfg.ModelsHandler.List)

	return router
}

func corsOrigins() []string {
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		return strings.Split(v, ",")
	}
	return []string{"http://localhost:80", "http://localhost:3000", "http://localhost:5174"}
}
