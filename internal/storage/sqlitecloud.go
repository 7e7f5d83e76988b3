package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sqlitecloud "github.com/sqlitecloud/sqlitecloud-go"
)

// SQLiteCloudStore is a DocumentStore on a SQLite Cloud database. Each
// document is a JSON body in the user_documents table.
type SQLiteCloudStore struct {
	db *sqlitecloud.SQCloud
}

// OpenSQLiteCloud connects to the database and creates the table if needed
func OpenSQLiteCloud(connStr string, logger *slog.Logger) (*SQLiteCloudStore, error) {
	logger.Info("connecting to SQLite Cloud", slog.String("dsn", maskConnectionString(connStr)))

	db, err := sqlitecloud.Connect(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite Cloud: %w", err)
	}

	store := &SQLiteCloudStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// maskConnectionString hides the API key in logs
func maskConnectionString(connStr string) string {
	if i := strings.Index(connStr, "apikey="); i >= 0 {
		return connStr[:i] + "apikey=***"
	}
	return connStr
}

func (s *SQLiteCloudStore) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS user_documents (
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('channels', 'summaries')),
			body TEXT NOT NULL,
			update_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_user_document UNIQUE(user_id, kind)
		)`,
	}

	for _, table := range tables {
		if err := s.db.Execute(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *SQLiteCloudStore) Get(_ context.Context, userID, kind string) ([]byte, bool, error) {
	sql := `SELECT body FROM user_documents WHERE user_id = ? AND kind = ?`

	result, err := s.db.SelectArray(sql, []interface{}{userID, kind})
	if err != nil {
		return nil, false, err
	}
	if result.GetNumberOfRows() == 0 {
		return nil, false, nil
	}

	body, err := result.GetStringValue(0, 0)
	if err != nil {
		return nil, false, err
	}
	return []byte(body), true, nil
}

func (s *SQLiteCloudStore) Put(_ context.Context, userID, kind string, body []byte) error {
	sql := `INSERT INTO user_documents (user_id, kind, body)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id, kind) DO UPDATE SET body = excluded.body, update_date = CURRENT_TIMESTAMP`

	return s.db.ExecuteArray(sql, []interface{}{userID, kind, string(body)})
}

func (s *SQLiteCloudStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
