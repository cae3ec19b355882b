package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultBusyTimeout is how long a write waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Store is the SQLite analysis history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path and runs migrations.
func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, DefaultBusyTimeout)
}

// OpenWithTimeout is Open with an explicit SQLite busy timeout.
func OpenWithTimeout(path string, busyTimeout time.Duration) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Two processes opening a fresh database must not both migrate it.
	release, err := acquireLock(path + ".lock")
	if err != nil {
		db.Close()
		return nil, err
	}
	err = MigrateDB(db)
	release()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func acquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock database: %w", err)
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveAnalysis inserts a and its candidates in one transaction and sets
// a.ID. A zero CreatedAt is stamped with the current time, and a zero
// Fingerprint is computed from the ciphertext.
func (s *Store) SaveAnalysis(a *Analysis) (int64, error) {
	switch a.Kind {
	case KindCaesar, KindVigenere:
	default:
		return 0, fmt.Errorf("unknown analysis kind %q", a.Kind)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Fingerprint == (Fingerprint{}) {
		a.Fingerprint = FingerprintOf(a.Ciphertext)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO analyses (kind, fingerprint, source, ciphertext, profile, ic, period, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.Kind), a.Fingerprint[:], a.Source, a.Ciphertext, a.Profile, a.IndexOfCoincidence, a.Period, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO candidates (analysis_id, ordinal, cipher_key, score, plaintext)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range a.Candidates {
		c := &a.Candidates[i]
		c.Ordinal = i
		if _, err := stmt.Exec(id, c.Ordinal, c.Key, c.Score, c.Plaintext); err != nil {
			return 0, fmt.Errorf("insert candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	a.ID = id
	return id, nil
}

const analysisColumns = `id, kind, fingerprint, source, ciphertext, profile, ic, period, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var kind string
	var fingerprint []byte
	var createdAt int64

	if err := row.Scan(&a.ID, &kind, &fingerprint, &a.Source, &a.Ciphertext, &a.Profile,
		&a.IndexOfCoincidence, &a.Period, &createdAt); err != nil {
		return nil, err
	}

	a.Kind = Kind(kind)
	copy(a.Fingerprint[:], fingerprint)
	a.CreatedAt = time.Unix(0, createdAt)
	return &a, nil
}

// GetAnalysis retrieves an analysis and all of its candidates.
func (s *Store) GetAnalysis(id int64) (*Analysis, error) {
	a, err := scanAnalysis(s.db.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	a.Candidates, err = s.candidates(id, -1)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// candidates loads the candidates of an analysis in rank order. limit < 0
// loads all of them.
func (s *Store) candidates(analysisID int64, limit int) ([]Candidate, error) {
	rows, err := s.db.Query(`
		SELECT ordinal, cipher_key, score, plaintext
		FROM candidates
		WHERE analysis_id = ?
		ORDER BY ordinal ASC
		LIMIT ?`, analysisID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Ordinal, &c.Key, &c.Score, &c.Plaintext); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// ListAnalyses returns analyses newest first, each carrying only its best
// candidate.
func (s *Store) ListAnalyses(filter ListFilter) ([]Analysis, error) {
	var where []string
	var args []any
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryAnalyses(query, args...)
}

// FindByFingerprint returns earlier analyses of the same ciphertext, newest
// first. An empty kind matches both ciphers.
func (s *Store) FindByFingerprint(fp Fingerprint, kind Kind) ([]Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE fingerprint = ?`
	args := []any{fp[:]}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id DESC"

	return s.queryAnalyses(query, args...)
}

func (s *Store) queryAnalyses(query string, args ...any) ([]Analysis, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, *a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	// Candidates are loaded after the cursor is closed so the connection is
	// free for the second query.
	for i := range out {
		out[i].Candidates, err = s.candidates(out[i].ID, 1)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteAnalysis removes an analysis and its candidates.
func (s *Store) DeleteAnalysis(id int64) error {
	result, err := s.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// PruneBefore deletes analyses recorded before t and returns how many went.
func (s *Store) PruneBefore(t time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM analyses WHERE created_at < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune analyses: %w", err)
	}
	return result.RowsAffected()
}

// GetStats returns database statistics.
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats
	var oldest, newest sql.NullInt64

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'caesar' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'vigenere' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT fingerprint),
			MIN(created_at),
			MAX(created_at)
		FROM analyses`,
	).Scan(&stats.TotalAnalyses, &stats.CaesarAnalyses, &stats.VigenereAnalyses, &stats.UniqueTexts, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	if oldest.Valid {
		stats.OldestAnalysis = time.Unix(0, oldest.Int64)
	}
	if newest.Valid {
		stats.NewestAnalysis = time.Unix(0, newest.Int64)
	}
	return &stats, nil
}
