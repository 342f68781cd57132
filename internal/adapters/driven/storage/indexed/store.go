// Package indexed implements the email store that pairs a flat-file vector
// index with a relational metadata table. Vectors and metadata are keyed by
// the same source ID, so search hits resolve by key rather than by insertion
// position.
package indexed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/vectorfile"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// checkpointKey is the app_metadata row holding the last-sync time.
const checkpointKey = "last_sync_checkpoint"

// Ensure Store implements the interface.
var _ driven.EmailStore = (*Store)(nil)

// Store combines a vectorfile index with a SQLite metadata database.
type Store struct {
	index     *vectorfile.Index
	db        *sql.DB
	dimension int
}

// NewStore creates an indexed email store under dataDir. If dataDir is
// empty it defaults to ~/.mailmind/data.
func NewStore(dataDir string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
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

	index, err := vectorfile.New(filepath.Join(dataDir, "emails.index"), dimension)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	dbPath := filepath.Join(dataDir, "email_metadata.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	s := &Store{
		index:     index,
		db:        db,
		dimension: dimension,
	}

	if err := s.initSchema(); err != nil {
		index.Close()
		db.Close()
		return nil, fmt.Errorf("initialising metadata schema: %w", err)
	}

	if err := s.reconcile(); err != nil {
		index.Close()
		db.Close()
		return nil, fmt.Errorf("reconciling metadata against index: %w", err)
	}

	return s, nil
}

// reconcile drops metadata rows whose vector never made it into the
// persisted index, which can happen when a save fails and the process dies
// before the next one succeeds. Dropping the row lets a later store of the
// same record rebuild both sides.
func (s *Store) reconcile() error {
	rows, err := s.db.Query("SELECT source_id FROM email_metadata")
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if !s.index.Contains(id) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := s.db.Exec("DELETE FROM email_metadata WHERE source_id = ?", id); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		logger.Warn("dropped %d metadata rows with no indexed vector", len(stale))
	}
	return nil
}

// Close persists the index and closes the metadata database.
func (s *Store) Close() error {
	indexErr := s.index.Close()
	dbErr := s.db.Close()
	if indexErr != nil {
		return indexErr
	}
	return dbErr
}

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimension
}

// Store persists a record unless its SourceID already exists. The metadata
// table is the authority for dedup. A vector already present without its
// metadata row is an orphan from an earlier partial failure; re-storing the
// record completes the pair.
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
		"SELECT COUNT(1) FROM email_metadata WHERE source_id = ?", rec.SourceID,
	).Scan(&exists)
	if err != nil {
		return domain.StoreFailed, fmt.Errorf("checking for existing record: %w", err)
	}
	if exists > 0 {
		return domain.StoreAlreadyExists, nil
	}

	if err := s.index.Add(ctx, rec.SourceID, rec.Embedding); err != nil {
		if !errors.Is(err, vectorfile.ErrDuplicateID) {
			return domain.StoreFailed, fmt.Errorf("indexing embedding: %w", err)
		}
		// Orphan vector from a prior failed metadata insert. Fall
		// through and write the missing row.
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO email_metadata (source_id, sender, cc, subject, date, body, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SourceID, rec.Sender, rec.CC, rec.Subject,
		rec.Date.UTC().Format(time.RFC3339), rec.Body, rec.Summary,
	)
	if err != nil {
		// The vector stays indexed; the orphan is skipped at search
		// time and repaired by the next store of the same record.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.StoreAlreadyExists, nil
		}
		return domain.StoreFailed, fmt.Errorf("inserting metadata: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		rec.Seq = seq
	}

	if err := s.index.Save(); err != nil {
		logger.Warn("persisting vector index: %v", err)
	}
	return domain.StoreInserted, nil
}

// Search queries the vector index for the nearest neighbours and resolves
// each hit to its stored summary. Hits without a metadata row are skipped.
// It always returns at least one element.
func (s *Store) Search(ctx context.Context, query []float32, k int) []string {
	if len(query) != s.dimension || k <= 0 {
		return []string{domain.NoResultsError}
	}

	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		logger.Warn("vector search failed: %v", err)
		return []string{domain.NoResultsError}
	}
	if len(hits) == 0 {
		return []string{domain.NoResultsFound}
	}

	results := make([]string, 0, len(hits))
	for _, hit := range hits {
		var summary string
		err := s.db.QueryRowContext(ctx,
			"SELECT summary FROM email_metadata WHERE source_id = ?", hit.RecordID,
		).Scan(&summary)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			logger.Warn("resolving search hit %s: %v", hit.RecordID, err)
			return []string{domain.NoResultsError}
		}
		results = append(results, summary)
	}

	if len(results) == 0 {
		return []string{domain.NoResultsFound}
	}
	return results
}

// Count returns the number of metadata rows, or 0 on failure.
func (s *Store) Count(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM email_metadata").Scan(&count); err != nil {
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

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS email_metadata (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id  TEXT NOT NULL UNIQUE,
			sender     TEXT NOT NULL DEFAULT '',
			cc         TEXT NOT NULL DEFAULT '',
			subject    TEXT NOT NULL DEFAULT '',
			date       TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS app_metadata (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}
