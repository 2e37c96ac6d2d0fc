package rules

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"conciliacontag/internal/models"
	"conciliacontag/internal/repositories"
)

const testSchema = `
CREATE TABLE regras_conciliacao (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	empresa_id INTEGER NOT NULL,
	complemento_hash TEXT NOT NULL,
	complemento_texto TEXT NOT NULL,
	debito TEXT NOT NULL DEFAULT '',
	credito TEXT NOT NULL DEFAULT '',
	historico TEXT NOT NULL DEFAULT '',
	last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (empresa_id, complemento_hash)
);
`

func testStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewStore(db, repositories.NewRuleRepository(db), time.Minute, nil), db
}

func TestUpsertAndLookup(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	rule := models.ReconciliationRule{
		CompanyID: 1,
		Hash:      "hash-a",
		KeyText:   "C - ACME LTDA",
		Debit:     "13082",
		Credit:    "40002",
		Historico: "104",
	}
	if err := s.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Lookup(ctx, 1, "hash-a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil {
		t.Fatal("expected rule, got nil")
	}
	if got.Credit != "40002" || got.KeyText != "C - ACME LTDA" {
		t.Errorf("rule = %+v", got)
	}

	// Missing hash and empty hash resolve to no rule, not an error.
	if got, err := s.Lookup(ctx, 1, "other"); err != nil || got != nil {
		t.Errorf("missing hash: rule=%v err=%v", got, err)
	}
	if got, err := s.Lookup(ctx, 1, ""); err != nil || got != nil {
		t.Errorf("empty hash: rule=%v err=%v", got, err)
	}
}

func TestUpsertLastWriteWins(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	first := models.ReconciliationRule{CompanyID: 1, Hash: "h", KeyText: "K", Credit: "11111"}
	second := models.ReconciliationRule{CompanyID: 1, Hash: "h", KeyText: "K", Credit: "22222"}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(ctx, 1, "h")
	if err != nil {
		t.Fatal(err)
	}
	if got.Credit != "22222" {
		t.Errorf("credit = %s, want the later write 22222", got.Credit)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM regras_conciliacao WHERE empresa_id = 1`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want exactly one active rule per key", count)
	}
}

func TestUpsertBatchInvalidatesCache(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	// Prime the cache with an empty company set.
	if got, err := s.Lookup(ctx, 1, "h"); err != nil || got != nil {
		t.Fatalf("prime: rule=%v err=%v", got, err)
	}

	batch := []models.ReconciliationRule{{Hash: "h", KeyText: "K", Credit: "33333"}}
	if err := s.UpsertBatch(ctx, 1, batch); err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(ctx, 1, "h")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Credit != "33333" {
		t.Errorf("lookup after batch = %+v, cache must have been invalidated", got)
	}
}

func TestUpsertBatchEmptyHashRejectsWholeBatch(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	batch := []models.ReconciliationRule{
		{Hash: "good", KeyText: "K", Credit: "1"},
		{Hash: "", KeyText: "bad", Credit: "2"},
	}
	if err := s.UpsertBatch(ctx, 1, batch); err == nil {
		t.Fatal("expected error for empty hash")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM regras_conciliacao`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("row count = %d, a failed batch must leave nothing behind", count)
	}
}

func TestUpsertBatchConcurrentWriters(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	// Two writers race on the same (company, hash) with different codes.
	// The company lock serializes them: both commit, the loser of the race
	// lands on the update path, and exactly one rule survives.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, credit := range []string{"11111", "22222"} {
		wg.Add(1)
		go func(i int, credit string) {
			defer wg.Done()
			errs[i] = s.UpsertBatch(ctx, 1, []models.ReconciliationRule{
				{Hash: "h", KeyText: "K", Credit: credit},
			})
		}(i, credit)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM regras_conciliacao WHERE empresa_id = 1`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want exactly one rule for the contested key", count)
	}

	got, err := s.Lookup(ctx, 1, "h")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a surviving rule")
	}
	if got.Credit != "11111" && got.Credit != "22222" {
		t.Errorf("credit = %s, must be one of the two writers' values", got.Credit)
	}
}

func TestCompanyIsolation(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, models.ReconciliationRule{CompanyID: 1, Hash: "h", KeyText: "K", Credit: "1"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(ctx, 2, "h")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("company 2 must not see company 1's rule, got %+v", got)
	}
}

func TestPurgeCompany(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, models.ReconciliationRule{CompanyID: 1, Hash: "h1", KeyText: "K", Credit: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, models.ReconciliationRule{CompanyID: 2, Hash: "h2", KeyText: "K", Credit: "2"}); err != nil {
		t.Fatal(err)
	}

	if err := s.PurgeCompany(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if got, _ := s.Lookup(ctx, 1, "h1"); got != nil {
		t.Errorf("purged company still has rule %+v", got)
	}
	if got, _ := s.Lookup(ctx, 2, "h2"); got == nil {
		t.Error("purge must not touch other companies")
	}
}

func TestRuleCacheExpiry(t *testing.T) {
	c := newRuleCache(10 * time.Millisecond)
	c.set(1, map[string]models.ReconciliationRule{"h": {Hash: "h"}})

	if _, ok := c.get(1); !ok {
		t.Fatal("fresh entry must be served")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.get(1); ok {
		t.Error("expired entry must not be served")
	}
}
