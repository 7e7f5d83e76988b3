// Package directory manages the channels each user follows and whether
// each one takes part in sync.
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yt-summer/internal/lock"
	"github.com/yt-summer/internal/models"
	"github.com/yt-summer/internal/storage"
)

// Directory is the per-user channel list
type Directory struct {
	repo   storage.ChannelRepository
	locker lock.Locker
	logger *slog.Logger
}

// New creates a new Directory
func New(repo storage.ChannelRepository, locker lock.Locker, logger *slog.Logger) *Directory {
	return &Directory{repo: repo, locker: locker, logger: logger}
}

// List returns the channels of a user, empty when none are stored
func (d *Directory) List(ctx context.Context, userID string) ([]models.Channel, error) {
	return d.repo.Channels(ctx, userID)
}

// Upsert replaces the channel list of a user. A channel id listed twice
// keeps its first entry.
func (d *Directory) Upsert(ctx context.Context, userID string, channels []models.Channel) error {
	unlock, err := d.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	return d.repo.SaveChannels(ctx, userID, dedupe(channels))
}

// Toggle sets the enabled flag of one channel. It returns models.ErrNotFound
// when the user does not follow the channel.
func (d *Directory) Toggle(ctx context.Context, userID, channelID string, enabled bool) (models.Channel, error) {
	unlock, err := d.lock(ctx, userID)
	if err != nil {
		return models.Channel{}, err
	}
	defer unlock()

	channels, err := d.repo.Channels(ctx, userID)
	if err != nil {
		return models.Channel{}, err
	}

	for i := range channels {
		if channels[i].ID != channelID {
			continue
		}
		channels[i].Enabled = enabled
		if err := d.repo.SaveChannels(ctx, userID, channels); err != nil {
			return models.Channel{}, err
		}
		d.logger.Info("channel toggled",
			slog.String("user", userID),
			slog.String("channel", channelID),
			slog.Bool("enabled", enabled))
		return channels[i], nil
	}
	return models.Channel{}, fmt.Errorf("channel %s: %w", channelID, models.ErrNotFound)
}

// Merge stores the upstream channel list, keeping the enabled flag of
// channels already known. Names and avatars are refreshed from upstream and
// new channels start enabled. Channels missing upstream are dropped.
func (d *Directory) Merge(ctx context.Context, userID string, upstream []models.Channel) ([]models.Channel, error) {
	unlock, err := d.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := d.repo.Channels(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, upstream)
	if err := d.repo.SaveChannels(ctx, userID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge combines existing and upstream without touching storage
func Merge(existing, upstream []models.Channel) []models.Channel {
	enabled := make(map[string]bool, len(existing))
	for _, ch := range existing {
		enabled[ch.ID] = ch.Enabled
	}

	merged := dedupe(upstream)
	for i := range merged {
		ch := &merged[i]
		ch.Enabled = true
		if was, ok := enabled[ch.ID]; ok {
			ch.Enabled = was
		}
	}
	return merged
}

func dedupe(channels []models.Channel) []models.Channel {
	out := make([]models.Channel, 0, len(channels))
	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		out = append(out, ch)
	}
	return out
}

func (d *Directory) lock(ctx context.Context, userID string) (func(), error) {
	unlock, err := d.locker.Lock(ctx, "channels:"+userID)
	if err != nil {
		return nil, fmt.Errorf("lock channels of %s: %w", userID, err)
	}
	return unlock, nil
}
