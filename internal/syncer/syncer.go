// Package syncer refreshes the channels of a user from their YouTube
// subscriptions and summarizes the most recent videos of the enabled ones.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yt-summer/internal/directory"
	"github.com/yt-summer/internal/lock"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/storage"
	"github.com/yt-summer/internal/summarize"
	"github.com/yt-summer/internal/youtube"
)

// ErrSyncInProgress is returned when the user already has a sync running
var ErrSyncInProgress = errors.New("sync already in progress")

// ChannelSource lists subscriptions and recent uploads
type ChannelSource interface {
	SubscribedChannels(ctx context.Context, accessToken string) ([]models.Channel, error)
	ChannelVideos(ctx context.Context, channelID string, limit int) ([]models.Video, error)
}

// ContentResolver picks the text to summarize for a video
type ContentResolver interface {
	Resolve(ctx context.Context, videoID, title, channelName string) models.Content
}

// Summarizer turns content into bullet points
type Summarizer interface {
	Summarize(ctx context.Context, content models.Content, title string) summarize.Result
}

// Options bound the work of one sync
type Options struct {
	MaxVideos        int
	VideosPerChannel int
}

// Report describes what a sync did
type Report struct {
	Channels         int               `json:"channels"`
	EnabledChannels  int               `json:"enabledChannels"`
	Candidates       int               `json:"candidates"`
	Selected         []string          `json:"selected"`
	Created          []string          `json:"created"`
	Skipped          []string          `json:"skipped"`
	Failed           map[string]string `json:"failed,omitempty"`
	FallbackChannels bool              `json:"fallbackChannels"`
}

// Syncer runs syncs for all users, one at a time per user
type Syncer struct {
	directory  *directory.Directory
	summaries  storage.SummaryRepository
	source     ChannelSource
	resolver   ContentResolver
	summarizer Summarizer
	locker     lock.Locker
	opts       Options
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a new Syncer
func New(
	dir *directory.Directory,
	summaries storage.SummaryRepository,
	source ChannelSource,
	resolver ContentResolver,
	summarizer Summarizer,
	locker lock.Locker,
	opts Options,
	logger *slog.Logger,
) *Syncer {
	return &Syncer{
		directory:  dir,
		summaries:  summaries,
		source:     source,
		resolver:   resolver,
		summarizer: summarizer,
		locker:     locker,
		opts:       opts,
		now:        time.Now,
		logger:     logger,
	}
}

// Sync merges the user's subscriptions into their directory, then
// summarizes the newest videos of the enabled channels one at a time. A
// video that fails is recorded in the report and the sync moves on; only
// directory failures abort it.
func (s *Syncer) Sync(ctx context.Context, userID, accessToken string) (*Report, error) {
	unlock, ok, err := s.locker.TryLock(ctx, "sync:"+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock sync: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	defer unlock()

	report := &Report{
		Selected: []string{},
		Created:  []string{},
		Skipped:  []string{},
		Failed:   map[string]string{},
	}

	upstream, fallback := s.subscriptions(ctx, userID, accessToken)
	report.FallbackChannels = fallback

	channels, err := s.directory.Merge(ctx, userID, upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to update channels: %w", err)
	}
	report.Channels = len(channels)

	enabled := models.EnabledIDs(channels)
	report.EnabledChannels = len(enabled)

	videos := s.recentVideos(ctx, enabled)
	report.Candidates = len(videos)
	if len(videos) > s.opts.MaxVideos {
		videos = videos[:s.opts.MaxVideos]
	}
	for _, v := range videos {
		report.Selected = append(report.Selected, v.ID)
	}

	avatars := avatarIndex(channels)
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sync interrupted: %w", err)
		}

		_, created, err := s.summarizeVideo(ctx, userID, video, avatars)
		switch {
		case err != nil:
			s.logger.Error("failed to summarize video",
				slog.String("user", userID),
				slog.String("video", video.ID),
				slog.String("error", err.Error()))
			report.Failed[video.ID] = err.Error()
		case created:
			report.Created = append(report.Created, video.ID)
		default:
			report.Skipped = append(report.Skipped, video.ID)
		}
	}

	s.logger.Info("sync finished",
		slog.String("user", userID),
		slog.Int("channels", report.Channels),
		slog.Int("enabled", report.EnabledChannels),
		slog.Int("candidates", report.Candidates),
		slog.Int("created", len(report.Created)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)),
		slog.Bool("fallback_channels", report.FallbackChannels))
	return report, nil
}

func (s *Syncer) subscriptions(ctx context.Context, userID, accessToken string) ([]models.Channel, bool) {
	if accessToken == "" {
		s.logger.Warn("no access token, using default channels", slog.String("user", userID))
		return youtube.FallbackChannels(), true
	}

	channels, err := s.source.SubscribedChannels(ctx, accessToken)
	if err != nil {
		s.logger.Warn("failed to fetch subscriptions, using default channels",
			slog.String("user", userID),
			slog.String("error", err.Error()))
		return youtube.FallbackChannels(), true
	}
	return channels, false
}

// recentVideos returns the uploads of all channels, newest first. Videos
// published at the same instant keep their channel order.
func (s *Syncer) recentVideos(ctx context.Context, channelIDs []string) []models.Video {
	var videos []models.Video
	for _, id := range channelIDs {
		list, err := s.source.ChannelVideos(ctx, id, s.opts.VideosPerChannel)
		if err != nil {
			s.logger.Warn("failed to fetch channel videos",
				slog.String("channel", id),
				slog.String("error", err.Error()))
			continue
		}
		videos = append(videos, list...)
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.After(videos[j].PublishedAt)
	})
	return videos
}

// SummarizeVideo stores a summary of video for the user unless one exists.
// created reports whether a new summary was stored.
func (s *Syncer) SummarizeVideo(ctx context.Context, userID string, video models.Video) (models.Summary, bool, error) {
	channels, err := s.directory.List(ctx, userID)
	if err != nil {
		return models.Summary{}, false, err
	}
	return s.summarizeVideo(ctx, userID, video, avatarIndex(channels))
}

func (s *Syncer) summarizeVideo(ctx context.Context, userID string, video models.Video, avatars channelAvatars) (models.Summary, bool, error) {
	existing, err := s.summaries.FindSummaryByVideoID(ctx, userID, video.ID)
	if err == nil {
		return *existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Summary{}, false, err
	}

	content := s.resolver.Resolve(ctx, video.ID, video.Title, video.ChannelName)
	result := s.summarizer.Summarize(ctx, content, video.Title)
	if err := ctx.Err(); err != nil {
		// a fallback produced for a canceled request is not kept
		return models.Summary{}, false, fmt.Errorf("summarize %s: %w", video.ID, err)
	}

	summary := models.NewSummary(video, result.Points, content.Source, avatars.lookup(video), s.now())
	stored, inserted, err := s.summaries.InsertSummaryIfAbsent(ctx, userID, summary)
	if err != nil {
		return models.Summary{}, false, err
	}

	if inserted {
		s.logger.Info("summary created",
			slog.String("user", userID),
			slog.String("video", video.ID),
			slog.String("source", string(content.Source)),
			slog.Bool("degraded", result.Degraded))
	}
	return stored, inserted, nil
}

// Preview summarizes a single video without storing anything
func (s *Syncer) Preview(ctx context.Context, videoID, title, channelName string) (summarize.Result, models.ContentSource) {
	content := s.resolver.Resolve(ctx, videoID, title, channelName)
	return s.summarizer.Summarize(ctx, content, title), content.Source
}

// channelAvatars finds the directory avatar of a video's channel, by id or name
type channelAvatars struct {
	byID   map[string]string
	byName map[string]string
}

func avatarIndex(channels []models.Channel) channelAvatars {
	a := channelAvatars{
		byID:   make(map[string]string, len(channels)),
		byName: make(map[string]string, len(channels)),
	}
	for _, ch := range channels {
		if ch.AvatarURL == "" {
			continue
		}
		a.byID[ch.ID] = ch.AvatarURL
		a.byName[ch.Name] = ch.AvatarURL
	}
	return a
}

func (a channelAvatars) lookup(video models.Video) string {
	if url, ok := a.byID[video.ChannelID]; ok {
		return url
	}
	return a.byName[video.ChannelName]
}
