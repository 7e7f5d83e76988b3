package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/yt-summer/internal/apperr"
	"github.com/yt-summer/internal/models"
)

const maxSubscriptionPages = 10

// Client wraps the YouTube Data API v3
type Client struct {
	service *youtube.Service
	opts    []option.ClientOption
	now     func() time.Time
	logger  *slog.Logger
}

// NewClient creates a client that authenticates public calls with apiKey.
// Extra options are applied to every service the client builds, including
// the per-user services used for subscriptions.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	service, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{
		service: service,
		opts:    opts,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// SubscribedChannels lists the channels the owner of accessToken is
// subscribed to. New channels are enabled.
func (c *Client) SubscribedChannels(ctx context.Context, accessToken string) ([]models.Channel, error) {
	if accessToken == "" {
		return nil, apperr.New(apperr.AuthFailure, "subscriptions", errors.New("missing access token"))
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	service, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(tokenSource)}, c.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	var channels []models.Channel
	pageToken := ""
	for page := 0; page < maxSubscriptionPages; page++ {
		call := service.Subscriptions.List([]string{"snippet"}).
			Mine(true).
			MaxResults(50).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, classify("subscriptions", err)
		}

		for _, item := range response.Items {
			if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil {
				continue
			}
			avatar := models.PlaceholderAvatarURL
			if t := item.Snippet.Thumbnails; t != nil && t.Default != nil && t.Default.Url != "" {
				avatar = t.Default.Url
			}
			channels = append(channels, models.Channel{
				ID:         item.Snippet.ResourceId.ChannelId,
				Name:       item.Snippet.Title,
				AvatarURL:  avatar,
				AvatarHint: models.Hint(item.Snippet.Title),
				Enabled:    true,
			})
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Info("fetched subscribed channels", slog.Int("count", len(channels)))
	return channels, nil
}

// ChannelVideos returns up to limit most recent videos of a channel, newest first
func (c *Client) ChannelVideos(ctx context.Context, channelID string, limit int) ([]models.Video, error) {
	response, err := c.service.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Order("date").
		Type("video").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("search", err)
	}

	now := c.now()
	videos := make([]models.Video, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.Id == nil || item.Snippet == nil || item.Id.VideoId == "" {
			continue
		}

		published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			return nil, apperr.New(apperr.Fatal, "search", fmt.Errorf("invalid publishedAt %q for video %s: %w", item.Snippet.PublishedAt, item.Id.VideoId, err))
		}

		thumbnail := models.PlaceholderThumbnailURL
		if t := item.Snippet.Thumbnails; t != nil && t.Medium != nil && t.Medium.Url != "" {
			thumbnail = t.Medium.Url
		}

		title := html.UnescapeString(item.Snippet.Title)
		videos = append(videos, models.Video{
			ID:            item.Id.VideoId,
			Title:         title,
			ChannelID:     item.Snippet.ChannelId,
			ChannelName:   html.UnescapeString(item.Snippet.ChannelTitle),
			ThumbnailURL:  thumbnail,
			ThumbnailHint: models.Hint(title),
			PublishedAt:   published,
			PublishedText: FormatPublished(published, now),
			Description:   html.UnescapeString(item.Snippet.Description),
		})
	}
	return videos, nil
}

// VideoDetails returns the metadata of a single video
func (c *Client) VideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error) {
	response, err := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("videos", err)
	}

	if len(response.Items) == 0 || response.Items[0] == nil {
		return nil, apperr.New(apperr.NotFound, "videos", fmt.Errorf("video %s not found", videoID))
	}

	video := response.Items[0]
	details := &models.VideoDetails{Duration: "Unknown"}
	if video.Snippet != nil {
		details.CategoryID = video.Snippet.CategoryId
		details.Tags = video.Snippet.Tags
		details.Description = video.Snippet.Description
	}
	if video.ContentDetails != nil {
		details.Duration = FormatDuration(video.ContentDetails.Duration)
	}
	if video.Statistics != nil {
		details.ViewCount = video.Statistics.ViewCount
		details.LikeCount = video.Statistics.LikeCount
	}
	return details, nil
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return apperr.New(apperr.FromHTTPStatus(gerr.Code), op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.Fatal, op, err)
	}
	return apperr.New(apperr.Transient, op, err)
}
