package stores

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedTestOntology loads thing > animal > {dog, cat} with "seco" IC values.
func seedTestOntology(t *testing.T, store *SQLiteStore) map[string]int64 {
	t.Helper()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	ids := make(map[string]int64)
	for _, name := range []string{"thing", "animal", "dog", "cat"} {
		id, err := store.AddConcept(ctx, tx, "http://example.org/#"+name, "class")
		if err != nil {
			t.Fatalf("AddConcept(%s) failed: %v", name, err)
		}
		ids[name] = id
	}

	edges := []HierarchyEdge{
		{Subclass: ids["thing"], Superclass: ids["thing"], Distance: 0},
		{Subclass: ids["animal"], Superclass: ids["animal"], Distance: 0},
		{Subclass: ids["animal"], Superclass: ids["thing"], Distance: 1},
		{Subclass: ids["dog"], Superclass: ids["dog"], Distance: 0},
		{Subclass: ids["dog"], Superclass: ids["animal"], Distance: 1},
		{Subclass: ids["dog"], Superclass: ids["thing"], Distance: 2},
		{Subclass: ids["cat"], Superclass: ids["cat"], Distance: 0},
		{Subclass: ids["cat"], Superclass: ids["animal"], Distance: 1},
		{Subclass: ids["cat"], Superclass: ids["thing"], Distance: 2},
	}
	if err := store.AddHierarchy(ctx, tx, edges); err != nil {
		t.Fatalf("AddHierarchy failed: %v", err)
	}

	for name, ic := range map[string]float64{"thing": 0, "animal": 0.5, "dog": 1, "cat": 1} {
		if err := store.SetIC(ctx, tx, ids[name], "seco", ic); err != nil {
			t.Fatalf("SetIC(%s) failed: %v", name, err)
		}
	}

	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return ids
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check should fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"owl_objects", "hierarchy", "information_content", "runs", "results"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		if err := store.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate failed: %v", err)
	}
}

func TestConceptID(t *testing.T) {
	store := setupTestStore(t)
	ids := seedTestOntology(t, store)
	ctx := context.Background()

	got, err := store.ConceptID(ctx, "http://example.org/#dog")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}
	if got != ids["dog"] {
		t.Errorf("ConceptID(dog) = %d, want %d", got, ids["dog"])
	}

	maxID := ids["cat"]
	first, err := store.ConceptID(ctx, "http://example.org/#unicorn")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}
	second, err := store.ConceptID(ctx, "http://example.org/#dragon")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}
	again, err := store.ConceptID(ctx, "http://example.org/#unicorn")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}

	if first != maxID+1 || second != maxID+2 {
		t.Errorf("unknown ids = %d, %d, want %d, %d", first, second, maxID+1, maxID+2)
	}
	if again != first {
		t.Errorf("unknown IRI not cached: %d != %d", again, first)
	}
}

func TestConceptID_EmptyStore(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.ConceptID(context.Background(), "http://example.org/#x")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}
	if id != 1 {
		t.Errorf("ConceptID on an empty store = %d, want 1", id)
	}
}

func TestEntity(t *testing.T) {
	store := setupTestStore(t)
	ids := seedTestOntology(t, store)
	ctx := context.Background()

	c, err := store.Entity(ctx, ids["animal"])
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if c.IRI != "http://example.org/#animal" || c.Type != "class" {
		t.Errorf("Entity = %+v", c)
	}

	unknown, err := store.ConceptID(ctx, "http://example.org/#ghost")
	if err != nil {
		t.Fatalf("ConceptID failed: %v", err)
	}
	c, err = store.Entity(ctx, unknown)
	if err != nil {
		t.Fatalf("Entity(unknown) failed: %v", err)
	}
	if c.IRI != "http://example.org/#ghost" || c.Type != "" {
		t.Errorf("Entity(unknown) = %+v", c)
	}

	if _, err := store.Entity(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Entity(9999) error = %v, want ErrNotFound", err)
	}
}

func TestAddConcept_Upsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.AddConcept(ctx, nil, "http://example.org/#a", "class")
	if err != nil {
		t.Fatalf("AddConcept failed: %v", err)
	}
	second, err := store.AddConcept(ctx, nil, "http://example.org/#a", "individual")
	if err != nil {
		t.Fatalf("AddConcept failed: %v", err)
	}
	if first != second {
		t.Errorf("re-adding an IRI changed its id: %d != %d", first, second)
	}

	c, err := store.Entity(ctx, first)
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if c.Type != "individual" {
		t.Errorf("type = %q, want individual", c.Type)
	}
}

func TestIC(t *testing.T) {
	store := setupTestStore(t)
	ids := seedTestOntology(t, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      int64
		measure string
		want    float64
	}{
		{name: "stored value", id: ids["animal"], measure: "seco", want: 0.5},
		{name: "zero value", id: ids["thing"], measure: "seco", want: 0},
		{name: "other measure", id: ids["dog"], measure: "resnik", want: NoIC},
		{name: "unknown concept", id: 9999, measure: "seco", want: NoIC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.IC(ctx, tt.id, tt.measure)
			if err != nil {
				t.Fatalf("IC failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IC = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMICA(t *testing.T) {
	store := setupTestStore(t)
	ids := seedTestOntology(t, store)
	ctx := context.Background()

	tests := []struct {
		name     string
		one, two int64
		want     float64
	}{
		{name: "siblings", one: ids["dog"], two: ids["cat"], want: 0.5},
		{name: "same concept", one: ids["dog"], two: ids["dog"], want: 1},
		{name: "ancestor", one: ids["dog"], two: ids["animal"], want: 0.5},
		{name: "root", one: ids["thing"], two: ids["cat"], want: 0},
		{name: "unknown concept", one: ids["dog"], two: 9999, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.MICA(ctx, tt.one, tt.two, "seco")
			if err != nil {
				t.Fatalf("MICA failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("MICA = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRunCRUD tests Run operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID:        "run-001",
		Config:    "pairs.conf",
		Status:    RunStatusRunning,
		Total:     3,
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	msg := "interrupted"
	if err := store.CompleteRun(ctx, run.ID, RunStatusCancelled, 2, 1, &msg); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunStatusCancelled || got.Completed != 2 || got.Failed != 1 || got.Total != 3 {
		t.Errorf("GetRun = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if got.Error == nil || *got.Error != msg {
		t.Errorf("Error = %v, want %q", got.Error, msg)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.CompleteRun(ctx, "missing", RunStatusFailed, 0, 0, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestResults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateRun(ctx, &Run{ID: "run-1", Config: "-", Status: RunStatusRunning, StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	failure := "no such item: x"
	results := []*Result{
		{RunID: "run-1", Seq: 0, Names: []string{"a", "b"}, Similarity: 0.25},
		{RunID: "run-1", Seq: 1, Names: []string{"a", "x"}, Similarity: math.NaN(), Error: &failure},
		{RunID: "run-1", Seq: 2, Names: []string{"b", "b", "c"}, Similarity: 1},
	}
	for _, r := range results {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatalf("AppendResult(%d) failed: %v", r.Seq, err)
		}
	}

	got, err := store.ListResults(ctx, "run-1", 10, 0)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(got) != len(results) {
		t.Fatalf("expected %d results, got %d", len(results), len(got))
	}
	for i, r := range got {
		if !reflect.DeepEqual(r.Names, results[i].Names) {
			t.Errorf("result %d names = %v, want %v", i, r.Names, results[i].Names)
		}
	}
	if got[0].Similarity != 0.25 {
		t.Errorf("result 0 similarity = %v", got[0].Similarity)
	}
	if !math.IsNaN(got[1].Similarity) {
		t.Errorf("result 1 similarity = %v, want NaN", got[1].Similarity)
	}
	if got[1].Error == nil || *got[1].Error != failure {
		t.Errorf("result 1 error = %v", got[1].Error)
	}

	page, err := store.ListResults(ctx, "run-1", 1, 2)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Errorf("paged results = %+v", page)
	}

	dup := &Result{RunID: "run-1", Seq: 0, Names: []string{"a"}, Similarity: 0}
	if err := store.AppendResult(ctx, dup); err == nil {
		t.Error("expected an error for a duplicate sequence number")
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "other error", err: errors.New("no such table"), want: false},
		{name: "locked message", err: fmt.Errorf("failed: %w", errors.New("database is locked (5) (SQLITE_BUSY)")), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusy(tt.err); got != tt.want {
				t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
