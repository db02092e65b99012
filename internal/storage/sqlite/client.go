package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/cache"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/internal/storage/models"
	"github.com/gear-detector/backend/pkg/logger"
)

type Client struct {
	db  *sql.DB
	now func() time.Time
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS gear_results (
		cache_key TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_expires ON gear_results(expires_at);

	CREATE TABLE IF NOT EXISTS searches (
		id TEXT PRIMARY KEY,
		artist TEXT NOT NULL,
		song TEXT NOT NULL,
		year INTEGER,
		cache_key TEXT NOT NULL,
		cache_hit INTEGER DEFAULT 0,
		confidence_score INTEGER,
		sources_consulted INTEGER,
		sources_succeeded INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created_at);
	CREATE INDEX IF NOT EXISTS idx_searches_key ON searches(cache_key);

	CREATE TABLE IF NOT EXISTS raw_source_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		item_count INTEGER DEFAULT 0,
		items TEXT,
		error TEXT,
		elapsed_ms INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (search_id) REFERENCES searches(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_source_data_search ON raw_source_data(search_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) Name() string { return "sqlite" }

// Put upserts the result. Timestamps are stored in nanoseconds so short TTLs survive.
func (c *Client) Put(ctx context.Context, key string, result *gear.GearResult, ttl time.Duration) error {
	entry := cache.NewEntry(key, result, c.now(), ttl)
	data, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO gear_results (cache_key, result, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			result = excluded.result,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	_, err = c.db.ExecContext(ctx, query, key, string(data), entry.CreatedAt.UnixNano(), entry.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	logger.Debug("Result cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Lookup returns the live entry for key. Expired rows stay in the table until Purge.
func (c *Client) Lookup(ctx context.Context, key string) (*cache.Entry, bool, error) {
	query := `SELECT result, created_at, expires_at FROM gear_results WHERE cache_key = ?`

	var data string
	var createdAt, expiresAt int64
	err := c.db.QueryRowContext(ctx, query, key).Scan(&data, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}

	entry := &cache.Entry{Key: key, CreatedAt: time.Unix(0, createdAt), ExpiresAt: time.Unix(0, expiresAt)}
	if entry.Expired(c.now()) {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(data), &entry.Result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return entry, true, nil
}

func (c *Client) Get(ctx context.Context, key string) (*gear.GearResult, bool, error) {
	entry, ok, err := c.Lookup(ctx, key)
	if !ok || err != nil {
		return nil, false, err
	}
	return entry.Result, true, nil
}

// Purge deletes expired results.
func (c *Client) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM gear_results WHERE expires_at <= ?`, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge results: %w", err)
	}
	n, _ := res.RowsAffected()
	logger.Info("Expired results purged", zap.Int64("rows", n))
	return n, nil
}

// RecordSearch stores a search and the raw per-source evidence in one transaction.
func (c *Client) RecordSearch(ctx context.Context, record *models.SearchRecord, data []models.SourceData) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO searches (id, artist, song, year, cache_key, cache_hit, confidence_score,
			sources_consulted, sources_succeeded, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cacheHit := 0
	if record.CacheHit {
		cacheHit = 1
	}

	_, err = tx.ExecContext(ctx,
		query,
		record.ID,
		record.Artist,
		record.Song,
		record.Year,
		record.CacheKey,
		cacheHit,
		record.ConfidenceScore,
		record.SourcesConsulted,
		record.SourcesSucceeded,
		record.LatencyMS,
		record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	for _, d := range data {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO raw_source_data (search_id, source, status, item_count, items, error, elapsed_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			d.Source,
			d.Status,
			d.ItemCount,
			d.Items,
			d.Error,
			d.ElapsedMS,
			record.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert source data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit search: %w", err)
	}

	logger.Info("Search recorded",
		zap.String("search_id", record.ID),
		zap.String("artist", record.Artist),
		zap.String("song", record.Song),
		zap.Bool("cache_hit", record.CacheHit),
		zap.Int("confidence", record.ConfidenceScore),
	)
	return nil
}

func (c *Client) GetSearchHistory(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	query := `
		SELECT id, artist, song, year, cache_key, cache_hit, confidence_score,
			sources_consulted, sources_succeeded, latency_ms, created_at
		FROM searches
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	records := []models.SearchRecord{}
	for rows.Next() {
		var r models.SearchRecord
		var year sql.NullInt64
		var cacheHit int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Artist, &r.Song, &year, &r.CacheKey, &cacheHit, &r.ConfidenceScore,
			&r.SourcesConsulted, &r.SourcesSucceeded, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if year.Valid {
			y := int(year.Int64)
			r.Year = &y
		}
		r.CacheHit = cacheHit == 1
		r.CreatedAt = time.Unix(0, createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) GetSourceData(ctx context.Context, searchID string) ([]models.SourceData, error) {
	query := `
		SELECT id, search_id, source, status, item_count, items, error, elapsed_ms, created_at
		FROM raw_source_data
		WHERE search_id = ?
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source data: %w", err)
	}
	defer rows.Close()

	var data []models.SourceData
	for rows.Next() {
		var d models.SourceData
		var createdAt int64
		err := rows.Scan(&d.ID, &d.SearchID, &d.Source, &d.Status, &d.ItemCount, &d.Items, &d.Error, &d.ElapsedMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d.CreatedAt = time.Unix(0, createdAt)
		data = append(data, d)
	}

	return data, rows.Err()
}
