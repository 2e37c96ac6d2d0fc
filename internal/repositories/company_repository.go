package repositories

import (
	"context"
	"database/sql"
	"errors"

	"conciliacontag/internal/models"
)

type CompanyRepository interface {
	CreateCompany(ctx context.Context, c *models.Company) error
	GetCompanies(ctx context.Context) ([]models.Company, error)
	GetCompanyByID(ctx context.Context, id int64) (*models.Company, error)
	DeleteCompany(ctx context.Context, id int64) error
}

type companyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) CreateCompany(ctx context.Context, c *models.Company) error {
	query := `
		INSERT INTO empresas (nome, razao_social, cnpj)
		VALUES (?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, c.Name, c.LegalName, c.CNPJ)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *companyRepository) GetCompanies(ctx context.Context) ([]models.Company, error) {
	query := `
		SELECT id, nome, razao_social, cnpj
		FROM empresas
		ORDER BY nome
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.LegalName, &c.CNPJ); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *companyRepository) GetCompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	c := &models.Company{}
	query := `
		SELECT id, nome, razao_social, cnpj
		FROM empresas
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.LegalName, &c.CNPJ)
	if err == sql.ErrNoRows {
		return nil, errors.New("company not found")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCompany removes the company row; imports, billing rows, rules and
// ledger entries go with it through the cascading foreign keys.
func (r *companyRepository) DeleteCompany(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM empresas WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("company not found")
	}
	return nil
}
