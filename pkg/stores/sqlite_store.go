package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config

	// IRI <-> id lookups are cached for the lifetime of the store.
	// Unknown IRIs are handed fresh ids past the largest stored one.
	mu     sync.Mutex
	ids    map[string]int64
	iris   map[int64]string
	nextID int64
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: sees its own database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:  cfg,
		ids:  make(map[string]int64),
		iris: make(map[int64]string),
	}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.cfg.Path
}

// Init initializes the database connection and enables WAL mode for
// file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if s.cfg.Path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) conn(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return s.db
}

// ConceptID returns the id of the object with the given IRI. An IRI the
// store does not know gets a fresh id that no stored object uses, so it
// compares as unrelated to everything else.
func (s *SQLiteStore) ConceptID(ctx context.Context, iri string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.ids[iri]; ok {
		return id, nil
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM owl_objects WHERE iri = ? LIMIT 1`, iri).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if s.nextID == 0 {
			var maxID sql.NullInt64
			if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM owl_objects`).Scan(&maxID); err != nil {
				return 0, fmt.Errorf("failed to get max concept id: %w", err)
			}
			s.nextID = maxID.Int64
		}
		s.nextID++
		id = s.nextID
	case err != nil:
		return 0, fmt.Errorf("failed to get concept id: %w", err)
	}

	s.ids[iri] = id
	s.iris[id] = iri
	return id, nil
}

// Entity returns the object with the given id. Ids handed out by
// ConceptID for unknown IRIs resolve to a Concept with an empty Type.
func (s *SQLiteStore) Entity(ctx context.Context, id int64) (*Concept, error) {
	s.mu.Lock()
	iri, cached := s.iris[id]
	s.mu.Unlock()

	c := &Concept{}
	err := s.db.QueryRowContext(ctx, `SELECT id, iri, type FROM owl_objects WHERE id = ?`, id).Scan(&c.ID, &c.IRI, &c.Type)
	if errors.Is(err, sql.ErrNoRows) {
		if cached {
			return &Concept{ID: id, IRI: iri}, nil
		}
		return nil, fmt.Errorf("concept %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}

	return c, nil
}

// AddConcept inserts an object, or updates its type if the IRI exists, and
// returns its id.
func (s *SQLiteStore) AddConcept(ctx context.Context, tx *sql.Tx, iri, kind string) (int64, error) {
	query := `
		INSERT INTO owl_objects (iri, type)
		VALUES (?, ?)
		ON CONFLICT(iri) DO UPDATE SET type = excluded.type
		RETURNING id
	`

	var id int64
	if err := s.conn(tx).QueryRowContext(ctx, query, iri, kind).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to add concept: %w", err)
	}

	s.resetCache()
	return id, nil
}

// AddHierarchy records closure edges, replacing existing ones for the same
// (subclass, superclass) pair.
func (s *SQLiteStore) AddHierarchy(ctx context.Context, tx *sql.Tx, edges []HierarchyEdge) error {
	query := `
		INSERT INTO hierarchy (subclass, superclass, distance)
		VALUES (?, ?, ?)
		ON CONFLICT(subclass, superclass) DO UPDATE SET distance = excluded.distance
	`

	c := s.conn(tx)
	for _, e := range edges {
		if _, err := c.ExecContext(ctx, query, e.Subclass, e.Superclass, e.Distance); err != nil {
			return fmt.Errorf("failed to add hierarchy edge %d -> %d: %w", e.Subclass, e.Superclass, err)
		}
	}

	return nil
}

// SetIC stores the information content of a concept for a measure.
func (s *SQLiteStore) SetIC(ctx context.Context, tx *sql.Tx, id int64, measure string, ic float64) error {
	query := `
		INSERT INTO information_content (id, measure, ic)
		VALUES (?, ?, ?)
		ON CONFLICT(id, measure) DO UPDATE SET ic = excluded.ic
	`

	if _, err := s.conn(tx).ExecContext(ctx, query, id, measure, ic); err != nil {
		return fmt.Errorf("failed to set information content: %w", err)
	}

	return nil
}

// IC returns the information content of a concept, or NoIC when the
// concept has no value for the measure.
func (s *SQLiteStore) IC(ctx context.Context, id int64, measure string) (float64, error) {
	var ic float64
	err := s.db.QueryRowContext(ctx,
		`SELECT ic FROM information_content WHERE id = ? AND measure = ?`, id, measure).Scan(&ic)
	if errors.Is(err, sql.ErrNoRows) {
		return NoIC, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get information content: %w", err)
	}

	return ic, nil
}

// MICA returns the information content of the most informative common
// ancestor of two concepts, or 0 when they share no ancestor with a value
// for the measure.
func (s *SQLiteStore) MICA(ctx context.Context, one, two int64, measure string) (float64, error) {
	query := `
		SELECT MAX(t.ic)
		FROM hierarchy AS h1
		JOIN hierarchy AS h2 ON h2.superclass = h1.superclass
		JOIN information_content AS t ON t.id = h1.superclass AND t.measure = ?
		WHERE h1.subclass = ? AND h2.subclass = ?
	`

	var ic sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, measure, one, two).Scan(&ic); err != nil {
		return 0, fmt.Errorf("failed to get shared information content: %w", err)
	}
	if !ic.Valid {
		return 0, nil
	}

	return ic.Float64, nil
}

func (s *SQLiteStore) resetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ids)
	clear(s.iris)
	s.nextID = 0
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, config, status, total, completed, failed, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Config,
		run.Status,
		run.Total,
		run.Completed,
		run.Failed,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, config, status, total, completed, failed, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Config,
		&run.Status,
		&run.Total,
		&run.Completed,
		&run.Failed,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// CompleteRun records the final status and counters of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, completed, failed int64, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, completed = ?, failed = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, completed, failed, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// AppendResult records the outcome of one group. A NaN similarity is
// stored as NULL.
func (s *SQLiteStore) AppendResult(ctx context.Context, result *Result) error {
	names, err := json.Marshal(result.Names)
	if err != nil {
		return fmt.Errorf("failed to encode names: %w", err)
	}

	var similarity sql.NullFloat64
	if !math.IsNaN(result.Similarity) {
		similarity = sql.NullFloat64{Float64: result.Similarity, Valid: true}
	}

	query := `
		INSERT INTO results (run_id, seq, names, similarity, error)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, result.RunID, result.Seq, string(names), similarity, result.Error); err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}

	return nil
}

// ListResults lists the results of a run in group order
func (s *SQLiteStore) ListResults(ctx context.Context, runID string, limit, offset int) ([]*Result, error) {
	query := `
		SELECT run_id, seq, names, similarity, error
		FROM results
		WHERE run_id = ?
		ORDER BY seq
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := []*Result{}
	for rows.Next() {
		r := &Result{}
		var names string
		var similarity sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.Seq, &names, &similarity, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &r.Names); err != nil {
			return nil, fmt.Errorf("failed to decode names of result %d: %w", r.Seq, err)
		}
		r.Similarity = math.NaN()
		if similarity.Valid {
			r.Similarity = similarity.Float64
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// IsBusy reports whether err is SQLite refusing work because another
// connection holds a lock. Such errors are worth retrying.
func IsBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
