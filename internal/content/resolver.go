// Package content picks the best text available for a video: its transcript
// when captions exist, otherwise a narrative built from the video metadata.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yt-summer/internal/apperr"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/youtube"
)

const (
	unknownChannel  = "Unknown Channel"
	defaultLanguage = "en"
	generalContent  = "general content"
)

// topics are matched against the lower-cased title in this order
var topics = []string{
	"tutorial", "guide", "review", "comparison", "unboxing", "setup",
	"coding", "programming", "development", "design", "art", "music",
	"gaming", "tech", "technology", "science", "education", "news",
	"vlog", "podcast", "interview", "lecture", "presentation",
}

// TranscriptSource returns the caption fragments of a video
type TranscriptSource interface {
	Transcript(ctx context.Context, videoID string) (*youtube.Transcript, error)
}

// DetailsSource returns the metadata of a video
type DetailsSource interface {
	VideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error)
}

// Resolver resolves the text handed to the summarizer
type Resolver struct {
	transcripts TranscriptSource
	details     DetailsSource
	logger      *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(transcripts TranscriptSource, details DetailsSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		transcripts: transcripts,
		details:     details,
		logger:      logger,
	}
}

// Resolve never fails: without a usable transcript it falls back to metadata,
// and without metadata to a template built from the title and channel.
func (r *Resolver) Resolve(ctx context.Context, videoID, title, channelName string) models.Content {
	if channelName == "" {
		channelName = unknownChannel
	}

	if text, language, ok := r.transcript(ctx, videoID); ok {
		r.logger.Info("using transcript",
			slog.String("video", videoID),
			slog.Int("length", len(text)))
		return models.Content{Text: text, Language: language, Source: models.SourceTranscript}
	}

	details, err := r.details.VideoDetails(ctx, videoID)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.NotFound):
		details = nil
	default:
		r.logger.Warn("video details unavailable, using minimal metadata",
			slog.String("video", videoID),
			slog.String("error", err.Error()))
		return models.Content{
			Text:     minimalNarrative(title, channelName),
			Language: defaultLanguage,
			Source:   models.SourceMetadata,
		}
	}

	text := MetadataNarrative(title, channelName, details)
	r.logger.Info("using metadata",
		slog.String("video", videoID),
		slog.Int("length", len(text)))
	return models.Content{Text: text, Language: defaultLanguage, Source: models.SourceMetadata}
}

func (r *Resolver) transcript(ctx context.Context, videoID string) (string, string, bool) {
	transcript, err := r.transcripts.Transcript(ctx, videoID)
	if err != nil {
		if !errors.Is(err, youtube.ErrNoTranscript) {
			r.logger.Warn("transcript fetch failed",
				slog.String("video", videoID),
				slog.String("error", err.Error()))
		}
		return "", "", false
	}

	text := strings.Join(strings.Fields(strings.Join(transcript.Fragments, " ")), " ")
	if text == "" {
		return "", "", false
	}

	language := transcript.Language
	if language == "" {
		language = defaultLanguage
	}
	return text, language, true
}

// MetadataNarrative describes a video from its title, channel and, when
// known, its details.
func MetadataNarrative(title, channelName string, details *models.VideoDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video Title: %s\n", title)
	fmt.Fprintf(&b, "Channel: %s\n", channelName)

	if details != nil {
		tags := "None"
		if len(details.Tags) > 0 {
			tags = strings.Join(details.Tags, ", ")
		}
		description := details.Description
		if description == "" {
			description = "No description available"
		}

		fmt.Fprintf(&b, "Duration: %s\n", details.Duration)
		fmt.Fprintf(&b, "Category: %s\n", details.CategoryID)
		fmt.Fprintf(&b, "Tags: %s\n", tags)
		fmt.Fprintf(&b, "Description: %s\n", description)
	}

	fmt.Fprintf(&b, "\nContext: This appears to be a video about %s. ", Topic(title))
	fmt.Fprintf(&b, "Based on the title and channel information, this video likely covers topics related to %s's typical content.", channelName)
	return b.String()
}

func minimalNarrative(title, channelName string) string {
	return fmt.Sprintf("Video Title: %s\n"+
		"Channel: %s\n"+
		"Content Type: Video content from %s\n"+
		"Description: This video appears to be content from the %s channel. "+
		"The title suggests it covers topics related to %s. "+
		"Without a transcript or detailed description, this summary is based on the available metadata and channel context.",
		title, channelName, channelName, channelName, Topic(title))
}

// Topic returns the first known topic keyword found in title
func Topic(title string) string {
	lower := strings.ToLower(title)
	for _, topic := range topics {
		if strings.Contains(lower, topic) {
			return topic
		}
	}
	return generalContent
}
