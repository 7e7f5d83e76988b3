package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/yt-summer/internal/auth"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/summarize"
	"github.com/yt-summer/internal/syncer"
)

// ChannelDirectory is the channel list of each user
type ChannelDirectory interface {
	List(ctx context.Context, userID string) ([]models.Channel, error)
	Upsert(ctx context.Context, userID string, channels []models.Channel) error
	Toggle(ctx context.Context, userID, channelID string, enabled bool) (models.Channel, error)
}

// SummaryStore is the summary history of each user
type SummaryStore interface {
	ListSummaries(ctx context.Context, userID string, limit int) ([]models.Summary, error)
	DeleteSummary(ctx context.Context, userID, summaryID string) error
}

// Synchronizer runs syncs and one-off summaries
type Synchronizer interface {
	Sync(ctx context.Context, userID, accessToken string) (*syncer.Report, error)
	Preview(ctx context.Context, videoID, title, channelName string) (summarize.Result, models.ContentSource)
}

// Deps are the services behind the API
type Deps struct {
	Directory ChannelDirectory
	Summaries SummaryStore
	Syncer    Synchronizer

	// Verifier checks bearer tokens; nil enables development mode
	Verifier auth.IdentityVerifier
	// OAuth enables /auth/login and /auth/callback when set
	OAuth *oauth2.Config

	AllowedOrigins []string
	SyncTimeout    time.Duration
	Logger         *slog.Logger
}

// Server represents the API server
type Server struct {
	router *gin.Engine
	deps   Deps
	logger *slog.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Pragma", auth.DevUserHeader, youTubeTokenHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server := &Server{
		router: router,
		deps:   deps,
		logger: deps.Logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all the routes for the server
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Google sign-in
	s.router.GET("/auth/login", s.login)
	s.router.GET("/auth/callback", s.callback)

	api := s.router.Group("/api", auth.Middleware(s.deps.Verifier, s.logger))

	// Channel endpoints
	api.GET("/channels", s.listChannels)
	api.PUT("/channels", s.upsertChannels)
	api.PATCH("/channels/:id", s.toggleChannel)

	// Sync and summaries
	api.POST("/sync", s.sync)
	api.GET("/summaries", s.listSummaries)
	api.DELETE("/summaries/:id", s.deleteSummary)
	api.POST("/summarize", s.summarize)
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// fail writes the error response matching err
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, syncer.ErrSyncInProgress):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Request timed out"
	default:
		s.logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}

	c.JSON(status, gin.H{"error": message})
}
