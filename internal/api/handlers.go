package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yt-summer/internal/auth"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/storage"
)

const (
	youTubeTokenHeader = "X-YouTube-Token"
	stateCookie        = "oauth_state"
)

// login handles requests to start Google sign-in
func (s *Server) login(c *gin.Context) {
	if s.deps.OAuth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/auth", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, auth.LoginURL(s.deps.OAuth, state))
}

// callback handles the redirect back from Google
func (s *Server) callback(c *gin.Context) {
	if s.deps.OAuth == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sign-in was denied: " + reason})
		return
	}

	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code query parameter is required"})
		return
	}

	session, err := auth.Exchange(c.Request.Context(), s.deps.OAuth, code)
	if err != nil {
		s.logger.Warn("google sign-in failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to complete sign-in"})
		return
	}

	c.SetCookie(stateCookie, "", -1, "/auth", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, session)
}

// listChannels handles requests to list the user's channels
func (s *Server) listChannels(c *gin.Context) {
	channels, err := s.deps.Directory.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

type upsertChannelsRequest struct {
	Channels []models.Channel `json:"channels" binding:"required"`
}

// upsertChannels handles requests to replace the user's channels
func (s *Server) upsertChannels(c *gin.Context) {
	var req upsertChannelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channels array is required"})
		return
	}

	seen := make(map[string]bool, len(req.Channels))
	for i := range req.Channels {
		ch := &req.Channels[i]
		if strings.TrimSpace(ch.ID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every channel needs an id"})
			return
		}
		if seen[ch.ID] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate channel id " + ch.ID})
			return
		}
		seen[ch.ID] = true
		if ch.AvatarURL == "" {
			ch.AvatarURL = models.PlaceholderAvatarURL
		}
		if ch.AvatarHint == "" {
			ch.AvatarHint = models.Hint(ch.Name)
		}
	}

	if err := s.deps.Directory.Upsert(c.Request.Context(), auth.UserID(c), req.Channels); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req.Channels)
}

type toggleChannelRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// toggleChannel handles requests to enable or disable a channel
func (s *Server) toggleChannel(c *gin.Context) {
	var req toggleChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	channel, err := s.deps.Directory.Toggle(c.Request.Context(), auth.UserID(c), c.Param("id"), *req.Enabled)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

type syncRequest struct {
	AccessToken string `json:"accessToken"`
}

// sync handles requests to sync the user's channels and summaries
func (s *Server) sync(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	token := req.AccessToken
	if token == "" {
		token = c.GetHeader(youTubeTokenHeader)
	}

	ctx := c.Request.Context()
	if s.deps.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.SyncTimeout)
		defer cancel()
	}

	report, err := s.deps.Syncer.Sync(ctx, auth.UserID(c), token)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// listSummaries handles requests to list the user's summaries
func (s *Server) listSummaries(c *gin.Context) {
	limit := storage.DefaultSummaryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	summaries, err := s.deps.Summaries.ListSummaries(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// deleteSummary handles requests to delete a summary
func (s *Server) deleteSummary(c *gin.Context) {
	if err := s.deps.Summaries.DeleteSummary(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type summarizeRequest struct {
	VideoID     string `json:"videoId"`
	VideoTitle  string `json:"videoTitle"`
	ChannelName string `json:"channelName"`
}

// summarize handles requests to summarize a single video on demand
func (s *Server) summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoID == "" || req.VideoTitle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing videoId or videoTitle"})
		return
	}

	result, source := s.deps.Syncer.Preview(c.Request.Context(), req.VideoID, req.VideoTitle, req.ChannelName)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"summary":       result.Text,
		"summaryPoints": result.Points,
		"contentSource": source,
	})
}
