package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// NoIC is the information content reported for concepts without a value
// for the requested measure.
const NoIC = -1.0

// RunStatus represents the status of a comparison run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Concept is an ontology object known to the store.
type Concept struct {
	ID   int64  `json:"id"`
	IRI  string `json:"iri"`
	Type string `json:"type"` // "class", "individual", ...
}

// HierarchyEdge is one row of the reflexive-transitive subclass closure.
type HierarchyEdge struct {
	Subclass   int64 `json:"subclass"`
	Superclass int64 `json:"superclass"`
	Distance   int   `json:"distance"`
}

// Run represents one execution of a configuration
type Run struct {
	ID          string     `json:"id"`
	Config      string     `json:"config"` // source names, comma separated
	Status      RunStatus  `json:"status"`
	Total       int64      `json:"total"`
	Completed   int64      `json:"completed"`
	Failed      int64      `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Result is the recorded outcome of comparing one group.
// Similarity is NaN when the comparison failed.
type Result struct {
	RunID      string   `json:"run_id"`
	Seq        int64    `json:"seq"`
	Names      []string `json:"names"`
	Similarity float64  `json:"similarity"`
	Error      *string  `json:"error,omitempty"`
}

// ConceptStore is the read side used by the similarity measures.
type ConceptStore interface {
	ConceptID(ctx context.Context, iri string) (int64, error)
	IC(ctx context.Context, id int64, measure string) (float64, error)
	MICA(ctx context.Context, one, two int64, measure string) (float64, error)
}

// Store defines the interface for the persistence layer
type Store interface {
	ConceptStore

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Concept operations
	Entity(ctx context.Context, id int64) (*Concept, error)
	AddConcept(ctx context.Context, tx *sql.Tx, iri, kind string) (int64, error)
	AddHierarchy(ctx context.Context, tx *sql.Tx, edges []HierarchyEdge) error
	SetIC(ctx context.Context, tx *sql.Tx, id int64, measure string, ic float64) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, completed, failed int64, errMsg *string) error
	AppendResult(ctx context.Context, result *Result) error
	ListResults(ctx context.Context, runID string, limit, offset int) ([]*Result, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
