package models

import (
	"time"

	"github.com/google/uuid"
)

// Summary represents an AI summary of a video stored for a user
type Summary struct {
	ID                string        `json:"id"`
	VideoID           string        `json:"videoId"`
	VideoTitle        string        `json:"videoTitle"`
	ChannelName       string        `json:"channelName"`
	ThumbnailURL      string        `json:"thumbnailUrl"`
	ThumbnailHint     string        `json:"thumbnailHint"`
	SummaryPoints     []string      `json:"summaryPoints"`
	PublishedAt       string        `json:"publishedAt"`
	ChannelAvatarURL  string        `json:"channelAvatarUrl"`
	ChannelAvatarHint string        `json:"channelAvatarHint"`
	ContentSource     ContentSource `json:"contentSource"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// NewSummary builds a summary for video with a fresh id
func NewSummary(video Video, points []string, source ContentSource, avatarURL string, now time.Time) Summary {
	if avatarURL == "" {
		avatarURL = PlaceholderAvatarURL
	}
	return Summary{
		ID:                uuid.NewString(),
		VideoID:           video.ID,
		VideoTitle:        video.Title,
		ChannelName:       video.ChannelName,
		ThumbnailURL:      video.ThumbnailURL,
		ThumbnailHint:     video.ThumbnailHint,
		SummaryPoints:     points,
		PublishedAt:       video.PublishedText,
		ChannelAvatarURL:  avatarURL,
		ChannelAvatarHint: Hint(video.ChannelName),
		ContentSource:     source,
		CreatedAt:         now,
	}
}
