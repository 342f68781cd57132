// Package sqlite implements the relational-only email store. Records and
// their serialised embeddings live in a single emails table; search scans
// the most recent rows and ranks them in process.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// checkpointKey is the app_metadata row holding the last-sync time.
const checkpointKey = "last_sync_checkpoint"

// DefaultScanWindow bounds how many of the most recent records a search
// considers when no explicit window is configured.
const DefaultScanWindow = 100

// Ensure Store implements the interface.
var _ driven.EmailStore = (*Store)(nil)

// Store is the SQLite-backed email store.
type Store struct {
	db         *sql.DB
	path       string
	dimension  int
	scanWindow int
}

// NewStore creates a SQLite email store under dataDir. If dataDir is empty
// it defaults to ~/.mailmind/data. scanWindow <= 0 selects the default.
func NewStore(dataDir string, dimension, scanWindow int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if scanWindow <= 0 {
		scanWindow = DefaultScanWindow
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mailmind", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "emails.db")

	// WAL mode for better concurrency between the ingest writer and
	// assistant reads.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		dimension:  dimension,
		scanWindow: scanWindow,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimension
}

// Store persists a record unless its SourceID already exists.
func (s *Store) Store(ctx context.Context, rec *domain.EmailRecord) (domain.StoreOutcome, error) {
	if rec == nil || rec.SourceID == "" {
		return domain.StoreFailed, fmt.Errorf("%w: record must have a source ID", domain.ErrInvalidInput)
	}
	if len(rec.Embedding) != s.dimension {
		return domain.StoreFailed, fmt.Errorf("%w: got %d, want %d",
			domain.ErrDimensionMismatch, len(rec.Embedding), s.dimension)
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM emails WHERE source_id = ?", rec.SourceID,
	).Scan(&exists)
	if err != nil {
		return domain.StoreFailed, fmt.Errorf("checking for existing record: %w", err)
	}
	if exists > 0 {
		return domain.StoreAlreadyExists, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (source_id, sender, cc, subject, date, body, summary, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourceID, rec.Sender, rec.CC, rec.Subject,
		rec.Date.UTC().Format(time.RFC3339), rec.Body, rec.Summary,
		float32SliceToBytes(rec.Embedding),
	)
	if err != nil {
		// Concurrent insert of the same source_id loses the race but is
		// still a duplicate, not a failure.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.StoreAlreadyExists, nil
		}
		return domain.StoreFailed, fmt.Errorf("inserting record: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		rec.Seq = seq
	}
	return domain.StoreInserted, nil
}

// Search scans the most recent scanWindow records and returns up to k
// summaries ranked by descending dot-product similarity. It always returns
// at least one element.
func (s *Store) Search(ctx context.Context, query []float32, k int) []string {
	if len(query) != s.dimension || k <= 0 {
		return []string{domain.NoResultsError}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT summary, embedding FROM emails
		ORDER BY id DESC LIMIT ?`, s.scanWindow)
	if err != nil {
		logger.Warn("email search query failed: %v", err)
		return []string{domain.NoResultsError}
	}
	defer rows.Close()

	type scored struct {
		summary string
		score   float64
	}
	var candidates []scored

	for rows.Next() {
		var summary string
		var blob []byte
		if err := rows.Scan(&summary, &blob); err != nil {
			logger.Warn("email search scan failed: %v", err)
			return []string{domain.NoResultsError}
		}
		emb := bytesToFloat32Slice(blob)
		if len(emb) != s.dimension {
			continue
		}
		candidates = append(candidates, scored{summary: summary, score: dotProduct(query, emb)})
	}
	if err := rows.Err(); err != nil {
		logger.Warn("email search iteration failed: %v", err)
		return []string{domain.NoResultsError}
	}

	if len(candidates) == 0 {
		return []string{domain.NoResultsFound}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]string, len(candidates))
	for i, c := range candidates {
		results[i] = c.summary
	}
	return results
}

// Count returns the number of stored records, or 0 on failure.
func (s *Store) Count(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM emails").Scan(&count); err != nil {
		logger.Warn("email count failed: %v", err)
		return 0
	}
	return count
}

// Checkpoint returns the persisted last-sync time, or the zero time when
// none has been written.
func (s *Store) Checkpoint(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM app_metadata WHERE key = ?", checkpointKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading checkpoint: %w", err)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing checkpoint %q: %w", value, err)
	}
	return t.UTC(), nil
}

// SetCheckpoint persists the last-sync time.
func (s *Store) SetCheckpoint(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		checkpointKey, t.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// dotProduct returns the inner product of two equal-length vectors.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
