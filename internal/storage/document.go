package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yt-summer/internal/lock"
	"github.com/yt-summer/internal/models"
)

// Document kinds
const (
	kindChannels  = "channels"
	kindSummaries = "summaries"
)

// DocumentStore keeps one JSON document per user and kind
type DocumentStore interface {
	Get(ctx context.Context, userID, kind string) (body []byte, found bool, err error)
	Put(ctx context.Context, userID, kind string, body []byte) error
	Close() error
}

// DocumentRepository implements Repository on a DocumentStore. The store
// has no uniqueness constraint, so read-modify-write of the summaries
// document runs under a per-user lock.
type DocumentRepository struct {
	store  DocumentStore
	locker lock.Locker
}

// NewDocumentRepository stores channels and summaries as JSON documents in store
func NewDocumentRepository(store DocumentStore, locker lock.Locker) *DocumentRepository {
	return &DocumentRepository{store: store, locker: locker}
}

// NewMemoryRepository returns a process-local repository
func NewMemoryRepository(locker lock.Locker) *DocumentRepository {
	return NewDocumentRepository(NewMemoryStore(), locker)
}

func (r *DocumentRepository) Channels(ctx context.Context, userID string) ([]models.Channel, error) {
	channels := []models.Channel{}
	if err := r.load(ctx, userID, kindChannels, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *DocumentRepository) SaveChannels(ctx context.Context, userID string, channels []models.Channel) error {
	if channels == nil {
		channels = []models.Channel{}
	}
	return r.save(ctx, userID, kindChannels, channels)
}

func (r *DocumentRepository) ListSummaries(ctx context.Context, userID string, limit int) ([]models.Summary, error) {
	summaries, err := r.summaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (r *DocumentRepository) FindSummaryByVideoID(ctx context.Context, userID, videoID string) (*models.Summary, error) {
	summaries, err := r.summaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if summaries[i].VideoID == videoID {
			return &summaries[i], nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *DocumentRepository) InsertSummaryIfAbsent(ctx context.Context, userID string, summary models.Summary) (models.Summary, bool, error) {
	unlock, err := r.locker.Lock(ctx, "summaries:"+userID)
	if err != nil {
		return models.Summary{}, false, fmt.Errorf("lock summaries: %w", err)
	}
	defer unlock()

	summaries, err := r.summaries(ctx, userID)
	if err != nil {
		return models.Summary{}, false, err
	}
	for _, existing := range summaries {
		if existing.VideoID == summary.VideoID {
			return existing, false, nil
		}
	}

	if err := r.save(ctx, userID, kindSummaries, append(summaries, summary)); err != nil {
		return models.Summary{}, false, err
	}
	return summary, true, nil
}

func (r *DocumentRepository) DeleteSummary(ctx context.Context, userID, summaryID string) error {
	unlock, err := r.locker.Lock(ctx, "summaries:"+userID)
	if err != nil {
		return fmt.Errorf("lock summaries: %w", err)
	}
	defer unlock()

	summaries, err := r.summaries(ctx, userID)
	if err != nil {
		return err
	}
	for i, s := range summaries {
		if s.ID == summaryID {
			return r.save(ctx, userID, kindSummaries, append(summaries[:i], summaries[i+1:]...))
		}
	}
	return models.ErrNotFound
}

func (r *DocumentRepository) Close() error {
	return r.store.Close()
}

func (r *DocumentRepository) summaries(ctx context.Context, userID string) ([]models.Summary, error) {
	summaries := []models.Summary{}
	if err := r.load(ctx, userID, kindSummaries, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *DocumentRepository) load(ctx context.Context, userID, kind string, v any) error {
	body, found, err := r.store.Get(ctx, userID, kind)
	if err != nil {
		return fmt.Errorf("failed to read %s of user %s: %w", kind, userID, err)
	}
	if !found {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s of user %s: %w", kind, userID, err)
	}
	return nil
}

func (r *DocumentRepository) save(ctx context.Context, userID, kind string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	if err := r.store.Put(ctx, userID, kind, body); err != nil {
		return fmt.Errorf("failed to write %s of user %s: %w", kind, userID, err)
	}
	return nil
}
