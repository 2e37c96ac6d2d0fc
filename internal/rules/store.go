// Package rules persists and serves per-company classification preferences
// keyed by the hash of the normalized matched text. Reads are cached with a
// bounded TTL; writes serialize per company and are last-write-wins.
package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"conciliacontag/internal/locker"
	"conciliacontag/internal/models"
)

// DefaultCacheTTL bounds how stale a served rule set can be.
const DefaultCacheTTL = 5 * time.Minute

const conflictBackoff = 100 * time.Millisecond

// ErrConflict signals that a concurrent writer beat this batch even after
// one automatic retry. The caller should re-submit the whole batch.
var ErrConflict = errors.New("rule store conflict")

// Repository is the persistence surface the store drives. Writes run inside
// the transaction supplied by the store.
type Repository interface {
	GetRulesByCompany(ctx context.Context, companyID int64) ([]models.ReconciliationRule, error)
	UpsertRule(tx *sql.Tx, rule *models.ReconciliationRule) error
	DeleteRulesByCompany(tx *sql.Tx, companyID int64) error
}

type Store struct {
	db     *sql.DB
	repo   Repository
	cache  *ruleCache
	locker *locker.Locker
}

func NewStore(db *sql.DB, repo Repository, ttl time.Duration, lk *locker.Locker) *Store {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if lk == nil {
		lk = locker.New()
	}
	return &Store{
		db:     db,
		repo:   repo,
		cache:  newRuleCache(ttl),
		locker: lk,
	}
}

// Lookup returns the active rule for (company, hash), or nil when none
// exists. The company rule set is loaded once per TTL window, so large
// batches do not re-query storage per row. Reads never wait on write locks
// held for a different company.
func (s *Store) Lookup(ctx context.Context, companyID int64, hash string) (*models.ReconciliationRule, error) {
	if hash == "" {
		return nil, nil
	}
	set, ok := s.cache.get(companyID)
	if !ok {
		var err error
		set, err = s.loadCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
	}
	rule, ok := set[hash]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (s *Store) loadCompany(ctx context.Context, companyID int64) (map[string]models.ReconciliationRule, error) {
	list, err := s.repo.GetRulesByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for company %d: %w", companyID, err)
	}
	set := make(map[string]models.ReconciliationRule, len(list))
	for _, r := range list {
		set[r.Hash] = r
	}
	s.cache.set(companyID, set)
	return set, nil
}

// Upsert replaces any existing rule for (company, hash). Last write wins;
// there are no merge semantics.
func (s *Store) Upsert(ctx context.Context, rule models.ReconciliationRule) error {
	return s.UpsertBatch(ctx, rule.CompanyID, []models.ReconciliationRule{rule})
}

// UpsertBatch applies all rules as one atomic unit: a partially-applied
// batch is never observable. Same-company writers serialize on the company
// lock; a cross-process conflict is retried once with backoff and then
// surfaced as ErrConflict.
func (s *Store) UpsertBatch(ctx context.Context, companyID int64, batch []models.ReconciliationRule) error {
	if len(batch) == 0 {
		return nil
	}
	unlock := s.locker.Lock(companyID)
	defer unlock()

	err := s.applyBatch(ctx, companyID, batch)
	if err != nil && isConflict(err) {
		select {
		case <-time.After(conflictBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		err = s.applyBatch(ctx, companyID, batch)
		if err != nil && isConflict(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	if err != nil {
		return err
	}
	s.cache.invalidate(companyID)
	return nil
}

func (s *Store) applyBatch(ctx context.Context, companyID int64, batch []models.ReconciliationRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var errs *multierror.Error
	for i := range batch {
		rule := batch[i]
		rule.CompanyID = companyID
		if rule.Hash == "" {
			errs = multierror.Append(errs, fmt.Errorf("rule %d: empty hash", i))
			continue
		}
		if err := s.repo.UpsertRule(tx, &rule); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rule %d (%s): %w", i, rule.Hash, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule batch: %w", err)
	}
	return nil
}

// PurgeCompany removes the whole rule set of one company. This is the only
// defined rule deletion path.
func (s *Store) PurgeCompany(ctx context.Context, companyID int64) error {
	unlock := s.locker.Lock(companyID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.DeleteRulesByCompany(tx, companyID); err != nil {
		return fmt.Errorf("failed to purge rules for company %d: %w", companyID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule purge: %w", err)
	}
	s.cache.invalidate(companyID)
	return nil
}

// isConflict recognizes unique-key violations from the drivers in use
// (MySQL error 1062, SQLite "UNIQUE constraint failed").
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
