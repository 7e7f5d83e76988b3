package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/yt-summer/internal/models"
)

type dialect struct {
	name       string
	driver     string
	migrations []string
	dollar     bool
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	migrations: []string{
		`CREATE TABLE channels (
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    channel_id TEXT NOT NULL,
    name TEXT NOT NULL,
    avatar_url TEXT NOT NULL,
    avatar_hint TEXT NOT NULL,
    enabled BOOLEAN NOT NULL,
    PRIMARY KEY (user_id, channel_id)
)`,
		`CREATE TABLE summaries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    video_id TEXT NOT NULL,
    video_title TEXT NOT NULL,
    channel_name TEXT NOT NULL,
    thumbnail_url TEXT NOT NULL,
    thumbnail_hint TEXT NOT NULL,
    summary_points TEXT NOT NULL,
    published_at TEXT NOT NULL,
    channel_avatar_url TEXT NOT NULL,
    channel_avatar_hint TEXT NOT NULL,
    content_source TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (user_id, video_id)
)`,
		`CREATE INDEX summaries_user_created ON summaries (user_id, created_at DESC)`,
	},
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "postgres",
	dollar: true,
	migrations: []string{
		`CREATE TABLE channels (
    user_id VARCHAR(255) NOT NULL,
    position INTEGER NOT NULL,
    channel_id VARCHAR(255) NOT NULL,
    name TEXT NOT NULL,
    avatar_url TEXT NOT NULL,
    avatar_hint TEXT NOT NULL,
    enabled BOOLEAN NOT NULL,
    PRIMARY KEY (user_id, channel_id)
)`,
		`CREATE TABLE summaries (
    seq BIGSERIAL PRIMARY KEY,
    id VARCHAR(36) NOT NULL UNIQUE,
    user_id VARCHAR(255) NOT NULL,
    video_id VARCHAR(64) NOT NULL,
    video_title TEXT NOT NULL,
    channel_name TEXT NOT NULL,
    thumbnail_url TEXT NOT NULL,
    thumbnail_hint TEXT NOT NULL,
    summary_points TEXT NOT NULL,
    published_at TEXT NOT NULL,
    channel_avatar_url TEXT NOT NULL,
    channel_avatar_hint TEXT NOT NULL,
    content_source VARCHAR(16) NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (user_id, video_id)
)`,
		`CREATE INDEX summaries_user_created ON summaries (user_id, created_at DESC)`,
	},
}

// SQLRepository implements Repository on database/sql. Uniqueness of a
// summary per user and video is enforced by the schema.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// OpenSQLite opens an SQLite database file, or ":memory:"
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLRepository, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return newSQLRepository(ctx, db, sqliteDialect, logger)
}

// OpenPostgres opens a PostgreSQL database from a lib/pq connection string
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*SQLRepository, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return newSQLRepository(ctx, db, postgresDialect, logger)
}

func newSQLRepository(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger) (*SQLRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", d.name, err)
	}

	r := &SQLRepository{db: db, dialect: d, logger: logger}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", d.name, err)
	}
	return r, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS migration (version INTEGER PRIMARY KEY, query TEXT NOT NULL)`); err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT query FROM migration ORDER BY version`)
	if err != nil {
		return err
	}
	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	missing, err := compareMigrations(r.dialect.migrations, existing)
	if err != nil {
		return err
	}

	for i, query := range missing {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO migration (version, query) VALUES (?, ?)`), len(existing)+i+1, query); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		r.logger.Info("applied migrations", slog.String("dialect", r.dialect.name), slog.Int("count", len(missing)))
	}
	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	if len(wanted) < len(existing) {
		return nil, errors.New("database schema is newer than this binary")
	}

	needed := []string{}
	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want != existing[i]:
			return nil, fmt.Errorf("incompatible migration %d: %v", i+1, want)
		}
	}
	return needed, nil
}

// rebind turns ? placeholders into $n for postgres
func (r *SQLRepository) rebind(query string) string {
	if !r.dialect.dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) Channels(ctx context.Context, userID string) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT channel_id, name, avatar_url, avatar_hint, enabled
FROM channels WHERE user_id = ? ORDER BY position`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.AvatarURL, &ch.AvatarHint, &ch.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *SQLRepository) SaveChannels(ctx context.Context, userID string, channels []models.Channel) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM channels WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("failed to clear channels: %w", err)
	}

	insert := r.rebind(`INSERT INTO channels (user_id, position, channel_id, name, avatar_url, avatar_hint, enabled)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, ch := range channels {
		if _, err := tx.ExecContext(ctx, insert, userID, i, ch.ID, ch.Name, ch.AvatarURL, ch.AvatarHint, ch.Enabled); err != nil {
			return fmt.Errorf("failed to insert channel %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

const summaryColumns = `id, video_id, video_title, channel_name, thumbnail_url, thumbnail_hint, summary_points,
published_at, channel_avatar_url, channel_avatar_hint, content_source, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (models.Summary, error) {
	var (
		s       models.Summary
		points  string
		source  string
		created int64
	)
	if err := row.Scan(&s.ID, &s.VideoID, &s.VideoTitle, &s.ChannelName, &s.ThumbnailURL, &s.ThumbnailHint, &points,
		&s.PublishedAt, &s.ChannelAvatarURL, &s.ChannelAvatarHint, &source, &created); err != nil {
		return models.Summary{}, err
	}
	if err := json.Unmarshal([]byte(points), &s.SummaryPoints); err != nil {
		return models.Summary{}, fmt.Errorf("failed to decode summary points of %s: %w", s.ID, err)
	}
	s.ContentSource = models.ContentSource(source)
	s.CreatedAt = time.UnixMilli(created).UTC()
	return s, nil
}

func (r *SQLRepository) ListSummaries(ctx context.Context, userID string, limit int) ([]models.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries WHERE user_id = ? ORDER BY created_at DESC, seq ASC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *SQLRepository) FindSummaryByVideoID(ctx context.Context, userID, videoID string) (*models.Summary, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+summaryColumns+` FROM summaries WHERE user_id = ? AND video_id = ?`), userID, videoID)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find summary for video %s: %w", videoID, err)
	}
	return &s, nil
}

func (r *SQLRepository) InsertSummaryIfAbsent(ctx context.Context, userID string, summary models.Summary) (models.Summary, bool, error) {
	points, err := json.Marshal(summary.SummaryPoints)
	if err != nil {
		return models.Summary{}, false, fmt.Errorf("failed to encode summary points: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO summaries (user_id, `+summaryColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, video_id) DO NOTHING`),
		userID, summary.ID, summary.VideoID, summary.VideoTitle, summary.ChannelName, summary.ThumbnailURL,
		summary.ThumbnailHint, string(points), summary.PublishedAt, summary.ChannelAvatarURL,
		summary.ChannelAvatarHint, string(summary.ContentSource), summary.CreatedAt.UnixMilli())
	if err != nil {
		return models.Summary{}, false, fmt.Errorf("failed to insert summary for video %s: %w", summary.VideoID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Summary{}, false, err
	}
	if n == 0 {
		existing, err := r.FindSummaryByVideoID(ctx, userID, summary.VideoID)
		if err != nil {
			return models.Summary{}, false, err
		}
		return *existing, false, nil
	}

	summary.CreatedAt = time.UnixMilli(summary.CreatedAt.UnixMilli()).UTC()
	return summary, true, nil
}

func (r *SQLRepository) DeleteSummary(ctx context.Context, userID, summaryID string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM summaries WHERE user_id = ? AND id = ?`), userID, summaryID)
	if err != nil {
		return fmt.Errorf("failed to delete summary %s: %w", summaryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}
