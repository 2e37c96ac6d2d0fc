package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"conciliacontag/internal/models"
)

type LedgerRepository interface {
	CreateReconciliationBatch(tx *sql.Tx, batch *models.ReconciliationBatch) error
	InsertLedgerEntry(tx *sql.Tx, entry *models.LedgerEntry) error
	GetReconciliationBatchByBatchID(ctx context.Context, batchID string) (*models.ReconciliationBatch, error)
	GetEntriesByReconciliationID(ctx context.Context, reconciliationID int64) ([]models.LedgerEntry, error)
	GetExistingOrigins(ctx context.Context, companyID int64, origins []string) ([]string, error)
	DeleteEntriesByOrigins(tx *sql.Tx, companyID int64, origins []string) error
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) CreateReconciliationBatch(tx *sql.Tx, batch *models.ReconciliationBatch) error {
	query := `
		INSERT INTO conciliacoes (batch_id, empresa_id, total_lancamentos)
		VALUES (?, ?, ?)
	`
	result, err := tx.Exec(query, batch.BatchID, batch.CompanyID, batch.RowCount)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	batch.ID = id
	return nil
}

// InsertLedgerEntry appends one entry. Ledger entries are never updated
// after creation; corrections are new entries.
func (r *ledgerRepository) InsertLedgerEntry(tx *sql.Tx, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO lancamentos_conciliacao (
			conciliacao_id, empresa_id, debito, credito, historico,
			data, valor, complemento, origem, categoria
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		entry.ReconciliationID,
		entry.CompanyID,
		entry.Debit,
		entry.Credit,
		entry.Historico,
		entry.Date,
		entry.Amount,
		entry.Complement,
		entry.Origin,
		entry.Category,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (r *ledgerRepository) GetReconciliationBatchByBatchID(ctx context.Context, batchID string) (*models.ReconciliationBatch, error) {
	batch := &models.ReconciliationBatch{}
	query := `
		SELECT id, batch_id, empresa_id, total_lancamentos
		FROM conciliacoes
		WHERE batch_id = ?
	`
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(
		&batch.ID,
		&batch.BatchID,
		&batch.CompanyID,
		&batch.RowCount,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New("reconciliation batch not found")
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *ledgerRepository) GetEntriesByReconciliationID(ctx context.Context, reconciliationID int64) ([]models.LedgerEntry, error) {
	query := `
		SELECT id, conciliacao_id, empresa_id, debito, credito, historico,
		       data, valor, complemento, origem, categoria
		FROM lancamentos_conciliacao
		WHERE conciliacao_id = ?
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, reconciliationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.ReconciliationID,
			&e.CompanyID,
			&e.Debit,
			&e.Credit,
			&e.Historico,
			&e.Date,
			&e.Amount,
			&e.Complement,
			&e.Origin,
			&e.Category,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *ledgerRepository) GetExistingOrigins(ctx context.Context, companyID int64, origins []string) ([]string, error) {
	if len(origins) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(origins))
	placeholders = placeholders[:len(placeholders)-1]
	query := `
		SELECT DISTINCT origem
		FROM lancamentos_conciliacao
		WHERE empresa_id = ? AND origem IN (` + placeholders + `)
	`

	args := make([]interface{}, 0, len(origins)+1)
	args = append(args, companyID)
	for _, o := range origins {
		args = append(args, o)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, err
		}
		existing = append(existing, origin)
	}
	return existing, rows.Err()
}

// DeleteEntriesByOrigins supports the caller-forced re-reconciliation of an
// origin file. This is the only deletion path for ledger entries short of a
// company cascade.
func (r *ledgerRepository) DeleteEntriesByOrigins(tx *sql.Tx, companyID int64, origins []string) error {
	if len(origins) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(origins))
	placeholders = placeholders[:len(placeholders)-1]
	query := `
		DELETE FROM lancamentos_conciliacao
		WHERE empresa_id = ? AND origem IN (` + placeholders + `)
	`

	args := make([]interface{}, 0, len(origins)+1)
	args = append(args, companyID)
	for _, o := range origins {
		args = append(args, o)
	}

	_, err := tx.Exec(query, args...)
	return err
}
