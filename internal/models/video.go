package models

import "time"

// Video represents a recent upload of a followed channel. Videos are not
// persisted, only the summaries derived from them.
type Video struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ChannelID     string    `json:"channelId"`
	ChannelName   string    `json:"channelName"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	ThumbnailHint string    `json:"thumbnailHint"`
	PublishedAt   time.Time `json:"-"`
	PublishedText string    `json:"publishedAt"`
	Description   string    `json:"description"`
}

// VideoDetails holds the metadata used when no transcript is available
type VideoDetails struct {
	Duration    string   `json:"duration"`
	CategoryID  string   `json:"categoryId"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	ViewCount   uint64   `json:"viewCount"`
	LikeCount   uint64   `json:"likeCount"`
}

// ContentSource tells where the summarized text came from
type ContentSource string

const (
	SourceTranscript ContentSource = "transcript"
	SourceMetadata   ContentSource = "metadata"
)

// Content is the text handed to the summarizer
type Content struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Source   ContentSource `json:"source"`
}
