package repositories

import (
	"context"
	"database/sql"
	"strings"

	"conciliacontag/internal/models"
)

type RuleRepository interface {
	GetRulesByCompany(ctx context.Context, companyID int64) ([]models.ReconciliationRule, error)
	UpsertRule(tx *sql.Tx, rule *models.ReconciliationRule) error
	DeleteRulesByCompany(tx *sql.Tx, companyID int64) error
}

type ruleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) GetRulesByCompany(ctx context.Context, companyID int64) ([]models.ReconciliationRule, error) {
	query := `
		SELECT id, empresa_id, complemento_hash, complemento_texto, debito, credito, historico
		FROM regras_conciliacao
		WHERE empresa_id = ?
	`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.ReconciliationRule
	for rows.Next() {
		var rule models.ReconciliationRule
		err := rows.Scan(
			&rule.ID,
			&rule.CompanyID,
			&rule.Hash,
			&rule.KeyText,
			&rule.Debit,
			&rule.Credit,
			&rule.Historico,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertRule inserts the rule, falling back to an update when the
// (empresa_id, complemento_hash) key already exists. Insert-first keeps the
// common new-rule path cheap and makes a losing concurrent writer land on
// the update path instead of silently clobbering nothing.
func (r *ruleRepository) UpsertRule(tx *sql.Tx, rule *models.ReconciliationRule) error {
	insert := `
		INSERT INTO regras_conciliacao (
			empresa_id, complemento_hash, complemento_texto,
			debito, credito, historico, last_used
		) VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := tx.Exec(insert,
		rule.CompanyID,
		rule.Hash,
		rule.KeyText,
		rule.Debit,
		rule.Credit,
		rule.Historico,
	)
	if err == nil {
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return idErr
		}
		rule.ID = id
		return nil
	}
	if !isDuplicateKey(err) {
		return err
	}

	update := `
		UPDATE regras_conciliacao
		SET complemento_texto = ?,
		    debito = ?,
		    credito = ?,
		    historico = ?,
		    last_used = CURRENT_TIMESTAMP
		WHERE empresa_id = ? AND complemento_hash = ?
	`
	_, err = tx.Exec(update,
		rule.KeyText,
		rule.Debit,
		rule.Credit,
		rule.Historico,
		rule.CompanyID,
		rule.Hash,
	)
	return err
}

func (r *ruleRepository) DeleteRulesByCompany(tx *sql.Tx, companyID int64) error {
	_, err := tx.Exec(`DELETE FROM regras_conciliacao WHERE empresa_id = ?`, companyID)
	return err
}

// isDuplicateKey recognizes unique-key violations from MySQL (error 1062)
// and SQLite.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
