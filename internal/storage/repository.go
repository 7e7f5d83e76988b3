// Package storage persists the channel directory and the summaries of each
// user. Every backend guarantees at most one summary per user and video.
package storage

import (
	"context"

	"github.com/yt-summer/internal/models"
)

// DefaultSummaryLimit is the page size of summary listings
const DefaultSummaryLimit = 20

// ChannelRepository stores the followed channels of a user, in display order
type ChannelRepository interface {
	Channels(ctx context.Context, userID string) ([]models.Channel, error)
	SaveChannels(ctx context.Context, userID string, channels []models.Channel) error
}

// SummaryRepository stores the summaries of a user
type SummaryRepository interface {
	// ListSummaries returns summaries newest first; limit <= 0 returns all
	ListSummaries(ctx context.Context, userID string, limit int) ([]models.Summary, error)
	// FindSummaryByVideoID returns models.ErrNotFound when absent
	FindSummaryByVideoID(ctx context.Context, userID, videoID string) (*models.Summary, error)
	// InsertSummaryIfAbsent stores summary unless one already exists for its
	// video, in which case the stored one is returned with inserted false
	InsertSummaryIfAbsent(ctx context.Context, userID string, summary models.Summary) (stored models.Summary, inserted bool, err error)
	// DeleteSummary returns models.ErrNotFound when absent
	DeleteSummary(ctx context.Context, userID, summaryID string) error
}

// Repository is a complete storage backend
type Repository interface {
	ChannelRepository
	SummaryRepository
	Close() error
}
