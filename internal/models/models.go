package models

// Company ("empresa") is the tenant boundary. Every other entity is scoped
// by a company id; deleting a company cascades over all of its data.
type Company struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"nome" json:"nome"`
	LegalName string `db:"razao_social" json:"razao_social"`
	CNPJ      string `db:"cnpj" json:"cnpj"`
}

// ImportBatch represents one ingestion event. It is created at upload time,
// never mutated, and exclusively owns its rows.
type ImportBatch struct {
	ID        int64  `db:"id" json:"id"`
	BatchID   string `db:"batch_id" json:"batch_id"`
	CompanyID int64  `db:"empresa_id" json:"empresa_id"`
	FileType  string `db:"tipo_arquivo" json:"tipo_arquivo"`
	FileCount int    `db:"total_arquivos" json:"total_arquivos"`
	RowCount  int    `db:"total_registros" json:"total_registros"`
}

// BankTransaction is a parsed OFX statement transaction. The source id
// (TransactionID) may repeat within one statement, so it is never used as a
// deduplication key on its own; file-level duplicate suppression keys on
// (empresa, arquivo_origem) instead.
type BankTransaction struct {
	ID            int64   `db:"id" json:"id"`
	CompanyID     int64   `db:"empresa_id" json:"empresa_id"`
	ImportID      int64   `db:"importacao_id" json:"importacao_id"`
	Date          string  `db:"data" json:"data"`
	Amount        float64 `db:"valor" json:"valor"`
	Kind          string  `db:"tipo" json:"tipo"`
	TransactionID string  `db:"id_transacao_ofx" json:"id_transacao_ofx"`
	Memo          string  `db:"memo" json:"memo"`
	Payee         string  `db:"payee" json:"payee"`
	CheckNum      string  `db:"checknum" json:"checknum"`
	OriginFile    string  `db:"arquivo_origem" json:"arquivo_origem"`
}

// BillingRecord is a billing-slip ("francesinha") row. Amount is the
// display string exactly as parsed (decimal comma); AmountValue is the
// numeric shadow used for validation and matching only.
type BillingRecord struct {
	ID             int64   `db:"id" json:"id"`
	CompanyID      int64   `db:"empresa_id" json:"empresa_id"`
	ImportID       int64   `db:"importacao_id" json:"importacao_id"`
	Payer          string  `db:"sacado" json:"sacado"`
	OurNumber      string  `db:"nosso_numero" json:"nosso_numero"`
	YourNumber     string  `db:"seu_numero" json:"seu_numero"`
	CreditForecast string  `db:"dt_previsao_credito" json:"dt_previsao_credito"`
	DueDate        string  `db:"vencimento" json:"vencimento"`
	PaymentLimit   string  `db:"dt_limite_pgto" json:"dt_limite_pgto"`
	Amount         string  `db:"valor_rs" json:"valor_rs"`
	AmountValue    float64 `db:"valor" json:"valor"`
	InterestAmount float64 `db:"vlr_mora" json:"vlr_mora"`
	DiscountAmount float64 `db:"vlr_desc" json:"vlr_desc"`
	OtherAdditions float64 `db:"vlr_outros_acresc" json:"vlr_outros_acresc"`
	SettledAt      string  `db:"dt_liquid" json:"dt_liquid"`
	CollectedValue float64 `db:"vlr_cobrado" json:"vlr_cobrado"`
	OriginFile     string  `db:"arquivo_origem" json:"arquivo_origem"`
}

// ChartAccount maps a payer-text fragment to an account code. The chart is
// supplied fresh per reconciliation run and is never persisted by the engine.
type ChartAccount struct {
	Code        string `json:"contabil"`
	Description string `json:"descricao"`
}

// ReconciliationRule is a learned per-company classification preference,
// keyed by the sha256 of the normalized matched text. At most one active
// rule exists per (empresa_id, complemento_hash); upserts are
// last-write-wins.
type ReconciliationRule struct {
	ID        int64  `db:"id" json:"id"`
	CompanyID int64  `db:"empresa_id" json:"empresa_id"`
	Hash      string `db:"complemento_hash" json:"complemento_hash"`
	KeyText   string `db:"complemento_texto" json:"complemento_texto"`
	Debit     string `db:"debito" json:"debito"`
	Credit    string `db:"credito" json:"credito"`
	Historico string `db:"historico" json:"historico"`
}

// ReconciliationBatch groups the ledger entries of one reconciliation run.
type ReconciliationBatch struct {
	ID        int64  `db:"id" json:"id"`
	BatchID   string `db:"batch_id" json:"batch_id"`
	CompanyID int64  `db:"empresa_id" json:"empresa_id"`
	RowCount  int    `db:"total_lancamentos" json:"total_lancamentos"`
}

// LedgerEntry is one final accounting entry. Entries are append-only:
// corrections are new entries, never mutations. Amount stays the formatted
// display text end to end so downstream import tools see the exact
// decimal-comma notation of the source.
type LedgerEntry struct {
	ID               int64  `db:"id" json:"id"`
	ReconciliationID int64  `db:"conciliacao_id" json:"conciliacao_id"`
	CompanyID        int64  `db:"empresa_id" json:"empresa_id"`
	Debit            string `db:"debito" json:"debito"`
	Credit           string `db:"credito" json:"credito"`
	Historico        string `db:"historico" json:"historico"`
	Date             string `db:"data" json:"data"`
	Amount           string `db:"valor" json:"valor"`
	Complement       string `db:"complemento" json:"complemento"`
	Origin           string `db:"origem" json:"origem"`
	Category         string `db:"categoria" json:"categoria"`
}

// Import file type constants
const (
	FileTypeOFX         = "OFX"
	FileTypeFrancesinha = "Francesinha"
)

// Classification outcome constants
const (
	OutcomeMatchedByRule  = "matched-by-rule"
	OutcomeMatchedByChart = "matched-by-chart"
	OutcomeUnmatched      = "unmatched"
	OutcomeInterest       = "interest"
)

// Fixed accounting codes used by the generated entries.
const (
	// Credit account for late-interest ("Juros de Mora") rows.
	AccountLateInterest = "31426"
	// Fallback credit account when no rule or chart entry matches.
	AccountNoMatch = "10550"
	// Historical code for late-interest rows.
	HistoricoLateInterest = "20"
	// Historical code for every other conciliation entry.
	HistoricoNormal = "104"
)

// OriginLateInterest tags billing rows synthesized from the vlr_mora column.
// These bypass text matching entirely.
const OriginLateInterest = "Juros de Mora"

// MemoSettlement marks statement rows that are settlements of billing slips.
// They are excluded from statement classification and aggregated by date to
// enrich billing complements instead.
const MemoSettlement = "CRÉD.LIQUIDAÇÃO COBRANÇA"

// Transaction kind constants as they appear in OFX extracts.
const (
	KindCredit = "CREDIT"
	KindDebit  = "DEBIT"
)
