package matching

import (
	"regexp"
	"strings"

	"conciliacontag/internal/models"
)

// Statement classification is a fixed memo/payee rule table. It only covers
// the recurring operational entries of the statement; everything else stays
// blank for the accountant to fill in (or for a saved rule to resolve on the
// next run).

var (
	maskedCPFPattern = regexp.MustCompile(`\*\*\*\.\d{3}\.\d{3}-\*\*`)
	cnpjPattern      = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3} \d{4}-\d{2}`)
)

// StatementClassification carries the resolved accounts for one statement
// transaction. Empty fields mean no fixed rule applied.
type StatementClassification struct {
	Debit     string
	Credit    string
	Historico string
}

// ClassifyStatement applies the fixed memo/payee table to one transaction.
func ClassifyStatement(t models.BankTransaction) StatementClassification {
	kind := strings.ToUpper(strings.TrimSpace(t.Kind))
	memo := strings.ToUpper(strings.TrimSpace(t.Memo))
	payee := strings.ToUpper(strings.TrimSpace(t.Payee))

	var c StatementClassification
	switch kind {
	case models.KindCredit:
		switch {
		case strings.Contains(memo, "CR COMPRAS"):
			c.Credit, c.Historico = "15254", "601"
		case strings.Contains(memo, "TARIFA ENVIO PIX"):
			c.Historico = "150"
		case maskedCPFPattern.MatchString(t.Payee):
			c.Credit, c.Historico = "10550", "78"
		case cnpjPattern.MatchString(t.Payee):
			c.Credit, c.Historico = "13709", "78"
		}
	case models.KindDebit:
		switch {
		case strings.Contains(memo, "TARIFA COBRANÇA"):
			c.Debit, c.Historico = "52877", "8"
		case strings.Contains(memo, "TARIFA ENVIO PIX"):
			c.Debit, c.Historico = "52878", "150"
		case strings.Contains(memo, "DÉBITO PACOTE SERVIÇOS"):
			c.Debit, c.Historico = "52914", "111"
		case strings.Contains(memo, "DEB.PARCELAS SUBSC./INTEGR."):
			c.Debit, c.Historico = "84618", "37"
		case strings.Contains(payee, "UNIMED"):
			c.Debit, c.Historico = "23921", "88"
		case strings.Contains(payee, "CÉDULA DE PRESENÇA"):
			c.Debit, c.Historico = "26186", "58"
		case strings.Contains(memo, "SALARIO"):
			c.Debit, c.Historico = "20817", "88"
		case strings.Contains(memo, "AGUA E ESGOTO"):
			c.Debit, c.Historico = "52197", "88"
		}
	}
	return c
}

// StatementComplement joins memo and payee under the C/D prefix used by the
// downstream accounting import.
func StatementComplement(t models.BankTransaction) string {
	prefix := ""
	switch strings.ToUpper(strings.TrimSpace(t.Kind)) {
	case models.KindCredit:
		prefix = "C - "
	case models.KindDebit:
		prefix = "D - "
	}
	if strings.TrimSpace(t.Payee) != "" {
		return prefix + t.Memo + " | " + t.Payee
	}
	return prefix + t.Memo
}
