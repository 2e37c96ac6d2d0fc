// Package ledger assembles the final debit/credit/historico entries from
// classified rows. Entries are emitted in input order (stable, to ease
// diffing against prior runs) and exactly one entry is produced per row.
package ledger

import (
	"strings"

	"conciliacontag/internal/matching"
	"conciliacontag/internal/models"
	"conciliacontag/internal/normalize"
)

// ClassifiedRow pairs a billing record with its classification decision.
type ClassifiedRow struct {
	Record         models.BillingRecord
	Classification matching.Classification
}

// Generator holds the per-batch debit policy: the debit account is always
// the company's configured bank account for the batch, supplied by the
// caller and never inferred.
type Generator struct {
	debitAccount string
}

func NewGenerator(debitAccount string) *Generator {
	return &Generator{debitAccount: debitAccount}
}

// GenerateBilling emits one entry per classified billing row. The amount is
// the display text of the source row, carried through without re-rounding
// or re-formatting. settlementTotals maps a dd/mm/yyyy settlement date to
// the summed statement settlement value for that day, used to enrich the
// complement.
func (g *Generator) GenerateBilling(companyID int64, rows []ClassifiedRow, settlementTotals map[string]float64) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		rec := row.Record
		cls := row.Classification

		debit := g.debitAccount
		if cls.Debit != "" {
			debit = cls.Debit
		}

		entries = append(entries, models.LedgerEntry{
			CompanyID:  companyID,
			Debit:      debit,
			Credit:     cls.Credit,
			Historico:  cls.Historico,
			Date:       normalize.FormatDateBR(rec.SettledAt),
			Amount:     rec.Amount,
			Complement: billingComplement(rec, settlementTotals),
			Origin:     rec.OriginFile,
			Category:   cls.Outcome,
		})
	}
	return entries
}

// GenerateStatement emits one entry per statement transaction using the
// fixed memo/payee table. Settlement rows must be filtered out by the
// caller before this step. Statement amounts are engine-derived, so they
// are formatted here (absolute value, decimal comma).
func (g *Generator) GenerateStatement(companyID int64, txns []models.BankTransaction) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(txns))
	for _, t := range txns {
		cls := matching.ClassifyStatement(t)

		amount := t.Amount
		if amount < 0 {
			amount = -amount
		}

		category := models.OutcomeUnmatched
		if cls.Debit != "" || cls.Credit != "" {
			category = models.OutcomeMatchedByChart
		}

		entries = append(entries, models.LedgerEntry{
			CompanyID:  companyID,
			Debit:      cls.Debit,
			Credit:     cls.Credit,
			Historico:  cls.Historico,
			Date:       normalize.FormatDateBR(t.Date),
			Amount:     normalize.FormatAmount(amount),
			Complement: matching.StatementComplement(t),
			Origin:     t.OriginFile,
			Category:   category,
		})
	}
	return entries
}

// ApplyRule overrides the accounts of an entry with a saved rule. Only the
// fields the rule actually carries are replaced; blanks in the rule leave
// the entry untouched.
func ApplyRule(e *models.LedgerEntry, rule *models.ReconciliationRule) {
	if rule == nil {
		return
	}
	if rule.Debit != "" {
		e.Debit = rule.Debit
	}
	if rule.Credit != "" {
		e.Credit = rule.Credit
	}
	if rule.Historico != "" {
		e.Historico = rule.Historico
	}
	e.Category = models.OutcomeMatchedByRule
}

// billingComplement builds the complement line:
//
//	C - <sacado, 40 chars> | <settlement total> | CRÉD.LIQUIDAÇÃO COBRANÇA | <dt_liquid>
//
// with a " | Juros de Mora" suffix for late-interest rows.
func billingComplement(rec models.BillingRecord, settlementTotals map[string]float64) string {
	date := normalize.FormatDateBR(rec.SettledAt)

	total := "N/A"
	if v, ok := settlementTotals[date]; ok {
		total = normalize.FormatAmount(v)
	}

	payer := []rune(rec.Payer)
	if len(payer) > 40 {
		payer = payer[:40]
	}

	base := "C - " + strings.TrimSpace(string(payer)) + " | " + total + " | " + models.MemoSettlement + " | " + date
	if rec.OriginFile == models.OriginLateInterest {
		return base + " | " + models.OriginLateInterest
	}
	return base
}
