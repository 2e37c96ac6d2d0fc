package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"conciliacontag/internal/dedup"
	"conciliacontag/internal/ledger"
	"conciliacontag/internal/locker"
	"conciliacontag/internal/matching"
	"conciliacontag/internal/models"
	"conciliacontag/internal/normalize"
	"conciliacontag/internal/repositories"
	"conciliacontag/internal/rules"
)

const defaultClassifyWorkers = 4

// ErrRunInProgress signals that another reconciliation run for the same
// company is still executing. The caller should retry once it finishes.
var ErrRunInProgress = errors.New("reconciliation already in progress")

// RunResult summarizes one committed reconciliation batch.
type RunResult struct {
	BatchID        string               `json:"batch_id"`
	Total          int                  `json:"total"`
	MatchedByRule  int                  `json:"matched_by_rule"`
	MatchedByChart int                  `json:"matched_by_chart"`
	Interest       int                  `json:"interest"`
	Unmatched      int                  `json:"unmatched"`
	Overwritten    []string             `json:"overwritten,omitempty"`
	Entries        []models.LedgerEntry `json:"entries"`
}

// Confirmation is one human-confirmed classification to be learned as a
// rule. Key is the raw rule-key text: the payer name for billing entries,
// or the complement-derived key for statement entries.
type Confirmation struct {
	Key       string `json:"key"`
	Debit     string `json:"debito"`
	Credit    string `json:"credito"`
	Historico string `json:"historico"`
}

// ReconciliationService runs the full pipeline for one company: load rows,
// classify, generate ledger entries, persist the batch atomically, and
// learn confirmed matches back into the rule store.
type ReconciliationService struct {
	db         *sql.DB
	importRepo repositories.ImportRepository
	ledgerRepo repositories.LedgerRepository
	ruleStore  *rules.Store
	engine     *matching.Engine
	workers    int
	runLock    *locker.Locker
	logger     *log.Logger
}

func NewReconciliationService(
	db *sql.DB,
	importRepo repositories.ImportRepository,
	ledgerRepo repositories.LedgerRepository,
	ruleStore *rules.Store,
	engine *matching.Engine,
	workers int,
) *ReconciliationService {
	if workers <= 0 {
		workers = defaultClassifyWorkers
	}
	return &ReconciliationService{
		db:         db,
		importRepo: importRepo,
		ledgerRepo: ledgerRepo,
		ruleStore:  ruleStore,
		engine:     engine,
		workers:    workers,
		runLock:    locker.New(),
		logger:     log.New("reconcile"),
	}
}

// Run reconciles everything currently imported for the company against the
// supplied chart of accounts. debitAccount is the company's bank/cash
// account for the batch; it is never inferred. All persistence happens in
// one transaction, so a cancelled or failed run leaves nothing behind.
func (s *ReconciliationService) Run(ctx context.Context, companyID int64, debitAccount string, chart []models.ChartAccount, force bool) (*RunResult, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("company id is required")
	}

	// At most one run per company at a time: a second run would race the
	// origin-level dedup check against the first run's inserts.
	unlock, ok := s.runLock.TryLock(companyID)
	if !ok {
		return nil, fmt.Errorf("company %d: %w", companyID, ErrRunInProgress)
	}
	defer unlock()

	txns, err := s.importRepo.GetBankTransactionsByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank transactions: %w", err)
	}
	recs, err := s.importRepo.GetBillingRecordsByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing records: %w", err)
	}
	if len(txns) == 0 && len(recs) == 0 {
		return nil, fmt.Errorf("nothing to reconcile for company %d", companyID)
	}

	// Settlement rows are replaced by their billing counterparts; they only
	// contribute the per-day settlement totals used in billing complements.
	statement, settlementTotals := splitSettlements(txns)

	gen := ledger.NewGenerator(debitAccount)

	entries := gen.GenerateStatement(companyID, statement)
	if err := s.applySavedRules(ctx, companyID, entries); err != nil {
		return nil, err
	}

	classified, err := s.classifyBilling(ctx, recs, chart)
	if err != nil {
		return nil, err
	}
	entries = append(entries, gen.GenerateBilling(companyID, classified, settlementTotals)...)

	origins := entryOrigins(entries)
	var overwritten []string
	existing, err := s.ledgerRepo.GetExistingOrigins(ctx, companyID, origins)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing reconciliation: %w", err)
	}
	if len(existing) > 0 {
		if !force {
			return nil, &dedup.DuplicateFileError{CompanyID: companyID, FileType: "conciliacao", Files: existing}
		}
		overwritten = existing
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(overwritten) > 0 {
		if err := s.ledgerRepo.DeleteEntriesByOrigins(tx, companyID, overwritten); err != nil {
			return nil, fmt.Errorf("failed to replace existing entries: %w", err)
		}
	}

	batch := &models.ReconciliationBatch{
		BatchID:   uuid.NewString(),
		CompanyID: companyID,
		RowCount:  len(entries),
	}
	if err := s.ledgerRepo.CreateReconciliationBatch(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create reconciliation batch: %w", err)
	}

	for i := range entries {
		entries[i].ReconciliationID = batch.ID
		if err := s.ledgerRepo.InsertLedgerEntry(tx, &entries[i]); err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation batch: %w", err)
	}

	result := summarize(batch.BatchID, entries)
	result.Overwritten = overwritten
	s.logger.Infof("reconciliation %s for company %d: %d entries (%d rule, %d chart, %d interest, %d unmatched)",
		batch.BatchID, companyID, result.Total, result.MatchedByRule, result.MatchedByChart, result.Interest, result.Unmatched)
	return result, nil
}

// classifyBilling fans the rows out over a bounded worker pool. Results
// keep input order: slot i of the output always belongs to row i.
func (s *ReconciliationService) classifyBilling(ctx context.Context, recs []models.BillingRecord, chart []models.ChartAccount) ([]ledger.ClassifiedRow, error) {
	results := make([]ledger.ClassifiedRow, len(recs))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range recs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			cls, err := s.engine.ClassifyBilling(ctx, recs[i], chart)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to classify row %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			results[i] = ledger.ClassifiedRow{Record: recs[i], Classification: cls}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// applySavedRules resolves statement residue against the rule store, keyed
// by the complement-derived rule key.
func (s *ReconciliationService) applySavedRules(ctx context.Context, companyID int64, entries []models.LedgerEntry) error {
	for i := range entries {
		key := normalize.RuleKey(entries[i].Complement, entries[i].Origin)
		rule, err := s.ruleStore.Lookup(ctx, companyID, normalize.Hash(key))
		if err != nil {
			return fmt.Errorf("failed to look up rule for entry %d: %w", i, err)
		}
		if rule != nil {
			ledger.ApplyRule(&entries[i], rule)
		}
	}
	return nil
}

// ConfirmMatches learns human-confirmed classifications as rules. The whole
// confirmation set is applied atomically; on conflict with a concurrent
// writer it retries once and then surfaces a transient error for the caller
// to re-submit.
func (s *ReconciliationService) ConfirmMatches(ctx context.Context, companyID int64, confirmations []Confirmation) (int, error) {
	if companyID <= 0 {
		return 0, fmt.Errorf("company id is required")
	}

	batch := make([]models.ReconciliationRule, 0, len(confirmations))
	for _, c := range confirmations {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			continue
		}
		if c.Debit == "" && c.Credit == "" {
			continue
		}
		batch = append(batch, models.ReconciliationRule{
			CompanyID: companyID,
			Hash:      normalize.Hash(key),
			KeyText:   key,
			Debit:     c.Debit,
			Credit:    c.Credit,
			Historico: c.Historico,
		})
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := s.ruleStore.UpsertBatch(ctx, companyID, batch); err != nil {
		if errors.Is(err, rules.ErrConflict) {
			return 0, fmt.Errorf("rule confirmation conflicted with a concurrent batch, retry: %w", err)
		}
		return 0, err
	}

	s.logger.Infof("learned %d rules for company %d", len(batch), companyID)
	return len(batch), nil
}

// GetReconciliation returns one committed batch with its entries.
func (s *ReconciliationService) GetReconciliation(ctx context.Context, batchID string) (*models.ReconciliationBatch, []models.LedgerEntry, error) {
	batch, err := s.ledgerRepo.GetReconciliationBatchByBatchID(ctx, batchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	entries, err := s.ledgerRepo.GetEntriesByReconciliationID(ctx, batch.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	return batch, entries, nil
}

// splitSettlements separates settlement rows (memo CRÉD.LIQUIDAÇÃO
// COBRANÇA) from classifiable statement rows and sums the settled value per
// dd/mm/yyyy day.
func splitSettlements(txns []models.BankTransaction) ([]models.BankTransaction, map[string]float64) {
	var statement []models.BankTransaction
	totals := make(map[string]float64)
	for _, t := range txns {
		if strings.TrimSpace(t.Memo) == models.MemoSettlement {
			totals[normalize.FormatDateBR(t.Date)] += t.Amount
			continue
		}
		statement = append(statement, t)
	}
	return statement, totals
}

func entryOrigins(entries []models.LedgerEntry) []string {
	seen := make(map[string]bool)
	var origins []string
	for _, e := range entries {
		if e.Origin == "" || seen[e.Origin] {
			continue
		}
		seen[e.Origin] = true
		origins = append(origins, e.Origin)
	}
	return origins
}

func summarize(batchID string, entries []models.LedgerEntry) *RunResult {
	result := &RunResult{BatchID: batchID, Total: len(entries), Entries: entries}
	for _, e := range entries {
		switch e.Category {
		case models.OutcomeMatchedByRule:
			result.MatchedByRule++
		case models.OutcomeMatchedByChart:
			result.MatchedByChart++
		case models.OutcomeInterest:
			result.Interest++
		case models.OutcomeUnmatched:
			result.Unmatched++
		}
	}
	return result
}
