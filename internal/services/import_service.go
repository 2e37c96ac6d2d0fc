package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/labstack/gommon/log"

	"conciliacontag/internal/dedup"
	"conciliacontag/internal/models"
	"conciliacontag/internal/normalize"
	"conciliacontag/internal/repositories"
)

// ValidationError points at the offending row so the caller can correct the
// source file. Any validation failure aborts the whole batch.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: invalid %s: %s", e.Row, e.Field, e.Reason)
}

// ImportResult reports one committed import batch.
type ImportResult struct {
	BatchID     string   `json:"batch_id"`
	RowCount    int      `json:"row_count"`
	FileCount   int      `json:"file_count"`
	Overwritten []string `json:"overwritten,omitempty"`
}

// ImportService is the import batch coordinator: it wraps the acceptance of
// a raw row set into one atomic unit. No partial batch is ever visible to
// readers; the transaction either fully commits or fully rolls back.
type ImportService struct {
	db         *sql.DB
	importRepo repositories.ImportRepository
	checker    *dedup.Checker
	logger     *log.Logger
}

func NewImportService(db *sql.DB, importRepo repositories.ImportRepository) *ImportService {
	return &ImportService{
		db:         db,
		importRepo: importRepo,
		checker:    dedup.NewChecker(importRepo),
		logger:     log.New("import"),
	}
}

// ImportBankTransactions persists one statement row set. When force is
// false a previously imported origin file rejects the whole batch with a
// duplicate-file signal; when true, rows of the duplicated files are
// replaced inside the same transaction.
func (s *ImportService) ImportBankTransactions(ctx context.Context, companyID int64, txns []models.BankTransaction, force bool) (*ImportResult, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("company id is required")
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("no transactions provided")
	}

	if err := validateBankTransactions(txns); err != nil {
		return nil, err
	}

	filenames := collectOriginFiles(len(txns), func(i int) string { return txns[i].OriginFile })
	var overwritten []string
	if err := s.checker.Check(ctx, companyID, models.FileTypeOFX, filenames); err != nil {
		var dupErr *dedup.DuplicateFileError
		if !force || !errors.As(err, &dupErr) {
			return nil, err
		}
		overwritten = dupErr.Files
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(overwritten) > 0 {
		if err := s.importRepo.DeleteRowsByOriginFiles(tx, companyID, models.FileTypeOFX, overwritten); err != nil {
			return nil, fmt.Errorf("failed to replace existing files: %w", err)
		}
	}

	batch := &models.ImportBatch{
		BatchID:   uuid.NewString(),
		CompanyID: companyID,
		FileType:  models.FileTypeOFX,
		FileCount: len(filenames),
		RowCount:  len(txns),
	}
	if err := s.importRepo.CreateImportBatch(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create import batch: %w", err)
	}

	for i := range txns {
		txns[i].CompanyID = companyID
		txns[i].ImportID = batch.ID
		if err := s.importRepo.InsertBankTransaction(tx, &txns[i]); err != nil {
			return nil, fmt.Errorf("failed to insert transaction at row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import batch: %w", err)
	}

	s.logger.Infof("imported %d statement rows for company %d (batch %s)", len(txns), companyID, batch.BatchID)
	return &ImportResult{
		BatchID:     batch.BatchID,
		RowCount:    len(txns),
		FileCount:   len(filenames),
		Overwritten: overwritten,
	}, nil
}

// ImportBillingRecords persists one billing-slip row set. Rows without a
// credit forecast date are dropped up front (unsettled placeholder lines in
// the source spreadsheets), and every record with a positive vlr_mora
// additionally spawns a late-interest row tagged "Juros de Mora".
func (s *ImportService) ImportBillingRecords(ctx context.Context, companyID int64, recs []models.BillingRecord, force bool) (*ImportResult, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("company id is required")
	}

	kept := make([]models.BillingRecord, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.CreditForecast) == "" {
			continue
		}
		kept = append(kept, rec)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no billing records provided")
	}

	if err := validateBillingRecords(kept); err != nil {
		return nil, err
	}

	filenames := collectOriginFiles(len(kept), func(i int) string { return kept[i].OriginFile })
	var overwritten []string
	if err := s.checker.Check(ctx, companyID, models.FileTypeFrancesinha, filenames); err != nil {
		var dupErr *dedup.DuplicateFileError
		if !force || !errors.As(err, &dupErr) {
			return nil, err
		}
		overwritten = dupErr.Files
	}

	kept = append(kept, expandLateInterestRows(kept)...)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(overwritten) > 0 {
		if err := s.importRepo.DeleteRowsByOriginFiles(tx, companyID, models.FileTypeFrancesinha, overwritten); err != nil {
			return nil, fmt.Errorf("failed to replace existing files: %w", err)
		}
	}

	batch := &models.ImportBatch{
		BatchID:   uuid.NewString(),
		CompanyID: companyID,
		FileType:  models.FileTypeFrancesinha,
		FileCount: len(filenames),
		RowCount:  len(kept),
	}
	if err := s.importRepo.CreateImportBatch(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create import batch: %w", err)
	}

	for i := range kept {
		kept[i].CompanyID = companyID
		kept[i].ImportID = batch.ID
		if err := s.importRepo.InsertBillingRecord(tx, &kept[i]); err != nil {
			return nil, fmt.Errorf("failed to insert billing record at row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import batch: %w", err)
	}

	s.logger.Infof("imported %d billing rows for company %d (batch %s)", len(kept), companyID, batch.BatchID)
	return &ImportResult{
		BatchID:     batch.BatchID,
		RowCount:    len(kept),
		FileCount:   len(filenames),
		Overwritten: overwritten,
	}, nil
}

// expandLateInterestRows copies every record carrying interest into a
// synthetic row whose amount is the interest value and whose origin tag is
// "Juros de Mora". The synthetic rows bypass text matching downstream.
func expandLateInterestRows(recs []models.BillingRecord) []models.BillingRecord {
	var extra []models.BillingRecord
	for _, rec := range recs {
		if rec.InterestAmount <= 0 {
			continue
		}
		mora := rec
		mora.Amount = normalize.FormatAmount(rec.InterestAmount)
		mora.AmountValue = rec.InterestAmount
		mora.CollectedValue = rec.InterestAmount
		mora.InterestAmount = 0
		mora.DiscountAmount = 0
		mora.OtherAdditions = 0
		mora.OriginFile = models.OriginLateInterest
		extra = append(extra, mora)
	}
	return extra
}

func validateBankTransactions(txns []models.BankTransaction) error {
	var errs *multierror.Error
	for i, t := range txns {
		if strings.TrimSpace(t.OriginFile) == "" {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "arquivo_origem", Reason: "missing"})
		}
		if !validDate(t.Date) {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "data", Reason: fmt.Sprintf("unparseable date %q", t.Date)})
		}
		if strings.TrimSpace(t.Kind) == "" {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "tipo", Reason: "missing"})
		}
	}
	return errs.ErrorOrNil()
}

func validateBillingRecords(recs []models.BillingRecord) error {
	var errs *multierror.Error
	for i := range recs {
		rec := &recs[i]
		if strings.TrimSpace(rec.OriginFile) == "" {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "arquivo_origem", Reason: "missing"})
		}
		if strings.TrimSpace(rec.Payer) == "" {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "sacado", Reason: "missing"})
		}
		if !validDate(rec.SettledAt) {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "dt_liquid", Reason: fmt.Sprintf("unparseable date %q", rec.SettledAt)})
		}
		v, err := normalize.ParseAmount(rec.Amount)
		if err != nil {
			errs = multierror.Append(errs, &ValidationError{Row: i, Field: "valor_rs", Reason: err.Error()})
			continue
		}
		// Shadow value for matching and reporting; the display string is
		// what gets carried into ledger entries.
		rec.AmountValue = v
	}
	return errs.ErrorOrNil()
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func validDate(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, t); err == nil {
			return true
		}
	}
	return false
}

func collectOriginFiles(n int, at func(int) string) []string {
	seen := make(map[string]bool, n)
	var files []string
	for i := 0; i < n; i++ {
		name := strings.TrimSpace(at(i))
		if name == "" || name == models.OriginLateInterest || seen[name] {
			continue
		}
		seen[name] = true
		files = append(files, name)
	}
	return files
}

