package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"conciliacontag/internal/models"
)

type ImportRepository interface {
	CreateImportBatch(tx *sql.Tx, batch *models.ImportBatch) error
	InsertBankTransaction(tx *sql.Tx, t *models.BankTransaction) error
	InsertBillingRecord(tx *sql.Tx, rec *models.BillingRecord) error
	GetExistingOriginFiles(ctx context.Context, companyID int64, fileType string, filenames []string) ([]string, error)
	DeleteRowsByOriginFiles(tx *sql.Tx, companyID int64, fileType string, filenames []string) error
	GetImportBatchByBatchID(ctx context.Context, batchID string) (*models.ImportBatch, error)
	GetBankTransactionsByCompany(ctx context.Context, companyID int64) ([]models.BankTransaction, error)
	GetBillingRecordsByCompany(ctx context.Context, companyID int64) ([]models.BillingRecord, error)
}

type importRepository struct {
	db *sql.DB
}

func NewImportRepository(db *sql.DB) ImportRepository {
	return &importRepository{db: db}
}

// rowTable maps a file category to the table owning its rows.
func rowTable(fileType string) (string, error) {
	switch fileType {
	case models.FileTypeOFX:
		return "transacoes_ofx", nil
	case models.FileTypeFrancesinha:
		return "francesinhas", nil
	default:
		return "", fmt.Errorf("unknown file type %q", fileType)
	}
}

func (r *importRepository) CreateImportBatch(tx *sql.Tx, batch *models.ImportBatch) error {
	query := `
		INSERT INTO importacoes (batch_id, empresa_id, tipo_arquivo, total_arquivos, total_registros)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		batch.BatchID,
		batch.CompanyID,
		batch.FileType,
		batch.FileCount,
		batch.RowCount,
	)
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

func (r *importRepository) InsertBankTransaction(tx *sql.Tx, t *models.BankTransaction) error {
	query := `
		INSERT INTO transacoes_ofx (
			empresa_id, importacao_id, data, valor, tipo,
			id_transacao_ofx, memo, payee, checknum, arquivo_origem
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		t.CompanyID,
		t.ImportID,
		t.Date,
		t.Amount,
		t.Kind,
		t.TransactionID,
		t.Memo,
		t.Payee,
		t.CheckNum,
		t.OriginFile,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (r *importRepository) InsertBillingRecord(tx *sql.Tx, rec *models.BillingRecord) error {
	query := `
		INSERT INTO francesinhas (
			empresa_id, importacao_id, sacado, nosso_numero, seu_numero,
			dt_previsao_credito, vencimento, dt_limite_pgto,
			valor_rs, valor, vlr_mora, vlr_desc, vlr_outros_acresc,
			dt_liquid, vlr_cobrado, arquivo_origem
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(query,
		rec.CompanyID,
		rec.ImportID,
		rec.Payer,
		rec.OurNumber,
		rec.YourNumber,
		rec.CreditForecast,
		rec.DueDate,
		rec.PaymentLimit,
		rec.Amount,
		rec.AmountValue,
		rec.InterestAmount,
		rec.DiscountAmount,
		rec.OtherAdditions,
		rec.SettledAt,
		rec.CollectedValue,
		rec.OriginFile,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *importRepository) GetExistingOriginFiles(ctx context.Context, companyID int64, fileType string, filenames []string) ([]string, error) {
	if len(filenames) == 0 {
		return nil, nil
	}
	table, err := rowTable(fileType)
	if err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(filenames))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		SELECT DISTINCT arquivo_origem
		FROM %s
		WHERE empresa_id = ? AND arquivo_origem IN (%s)
	`, table, placeholders)

	args := make([]interface{}, 0, len(filenames)+1)
	args = append(args, companyID)
	for _, f := range filenames {
		args = append(args, f)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing = append(existing, name)
	}
	return existing, rows.Err()
}

func (r *importRepository) DeleteRowsByOriginFiles(tx *sql.Tx, companyID int64, fileType string, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	table, err := rowTable(fileType)
	if err != nil {
		return err
	}

	placeholders := strings.Repeat("?,", len(filenames))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE empresa_id = ? AND arquivo_origem IN (%s)
	`, table, placeholders)

	args := make([]interface{}, 0, len(filenames)+1)
	args = append(args, companyID)
	for _, f := range filenames {
		args = append(args, f)
	}

	_, err = tx.Exec(query, args...)
	return err
}

func (r *importRepository) GetImportBatchByBatchID(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	batch := &models.ImportBatch{}
	query := `
		SELECT id, batch_id, empresa_id, tipo_arquivo, total_arquivos, total_registros
		FROM importacoes
		WHERE batch_id = ?
	`
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(
		&batch.ID,
		&batch.BatchID,
		&batch.CompanyID,
		&batch.FileType,
		&batch.FileCount,
		&batch.RowCount,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New("import batch not found")
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *importRepository) GetBankTransactionsByCompany(ctx context.Context, companyID int64) ([]models.BankTransaction, error) {
	query := `
		SELECT id, empresa_id, importacao_id, data, valor, tipo,
		       id_transacao_ofx, memo, payee, checknum, arquivo_origem
		FROM transacoes_ofx
		WHERE empresa_id = ?
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.BankTransaction
	for rows.Next() {
		var t models.BankTransaction
		err := rows.Scan(
			&t.ID,
			&t.CompanyID,
			&t.ImportID,
			&t.Date,
			&t.Amount,
			&t.Kind,
			&t.TransactionID,
			&t.Memo,
			&t.Payee,
			&t.CheckNum,
			&t.OriginFile,
		)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *importRepository) GetBillingRecordsByCompany(ctx context.Context, companyID int64) ([]models.BillingRecord, error) {
	query := `
		SELECT id, empresa_id, importacao_id, sacado, nosso_numero, seu_numero,
		       dt_previsao_credito, vencimento, dt_limite_pgto,
		       valor_rs, valor, vlr_mora, vlr_desc, vlr_outros_acresc,
		       dt_liquid, vlr_cobrado, arquivo_origem
		FROM francesinhas
		WHERE empresa_id = ?
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.BillingRecord
	for rows.Next() {
		var rec models.BillingRecord
		err := rows.Scan(
			&rec.ID,
			&rec.CompanyID,
			&rec.ImportID,
			&rec.Payer,
			&rec.OurNumber,
			&rec.YourNumber,
			&rec.CreditForecast,
			&rec.DueDate,
			&rec.PaymentLimit,
			&rec.Amount,
			&rec.AmountValue,
			&rec.InterestAmount,
			&rec.DiscountAmount,
			&rec.OtherAdditions,
			&rec.SettledAt,
			&rec.CollectedValue,
			&rec.OriginFile,
		)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
