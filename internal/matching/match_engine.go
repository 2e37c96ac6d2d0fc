package matching

import (
	"context"
	"strings"

	"conciliacontag/internal/models"
	"conciliacontag/internal/normalize"
)

// DefaultSimilarityThreshold is the minimum levenshtein ratio for the fuzzy
// chart pass.
const DefaultSimilarityThreshold = 0.85

// RuleLookup is the read side of the rule store consulted before any
// textual matching.
type RuleLookup interface {
	Lookup(ctx context.Context, companyID int64, hash string) (*models.ReconciliationRule, error)
}

// Classification is the single outcome produced for one billing row.
type Classification struct {
	Outcome   string
	Debit     string
	Credit    string
	Historico string
	// Hash is the rule-store key of the normalized payer, carried so a
	// later human confirmation can be written back without re-normalizing.
	Hash string
	// ChartDescription is the fragment that matched, when Outcome is
	// matched-by-chart.
	ChartDescription string
}

// Engine classifies billing records against the company's rule set and
// chart of accounts. Precedence is strict: rule lookup first (keyed, at
// most one row), chart scan second, unmatched last.
type Engine struct {
	rules     RuleLookup
	threshold float64
}

func NewEngine(rules RuleLookup, threshold float64) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Engine{rules: rules, threshold: threshold}
}

// ClassifyBilling resolves one billing record. Late-interest rows are
// identified by origin tag, never by text, and resolve to the fixed
// interest accounts without touching the rule store or the chart.
func (e *Engine) ClassifyBilling(ctx context.Context, rec models.BillingRecord, chart []models.ChartAccount) (Classification, error) {
	if rec.OriginFile == models.OriginLateInterest {
		return Classification{
			Outcome:   models.OutcomeInterest,
			Credit:    models.AccountLateInterest,
			Historico: models.HistoricoLateInterest,
			Hash:      normalize.Hash(rec.Payer),
		}, nil
	}

	hash := normalize.Hash(rec.Payer)
	if hash != "" {
		rule, err := e.rules.Lookup(ctx, rec.CompanyID, hash)
		if err != nil {
			return Classification{}, err
		}
		if rule != nil {
			return Classification{
				Outcome:   models.OutcomeMatchedByRule,
				Debit:     rule.Debit,
				Credit:    rule.Credit,
				Historico: rule.Historico,
				Hash:      hash,
			}, nil
		}
	}

	if acc, ok := e.scanChart(rec.Payer, chart); ok {
		return Classification{
			Outcome:          models.OutcomeMatchedByChart,
			Credit:           acc.Code,
			Historico:        models.HistoricoNormal,
			Hash:             hash,
			ChartDescription: acc.Description,
		}, nil
	}

	return Classification{
		Outcome:   models.OutcomeUnmatched,
		Credit:    models.AccountNoMatch,
		Historico: models.HistoricoNormal,
		Hash:      hash,
	}, nil
}

// scanChart walks the chart in caller-supplied order. First match wins on
// both passes; callers depend on chart order being honored, never on
// best-match ranking.
func (e *Engine) scanChart(payer string, chart []models.ChartAccount) (models.ChartAccount, bool) {
	p := normalize.Text(payer)
	if p == "" {
		return models.ChartAccount{}, false
	}

	for _, acc := range chart {
		frag := normalize.Text(acc.Description)
		if frag == "" {
			continue
		}
		if strings.Contains(p, frag) || strings.Contains(frag, p) {
			return acc, true
		}
	}

	for _, acc := range chart {
		frag := normalize.Text(acc.Description)
		if frag == "" {
			continue
		}
		if normalize.Similarity(payer, acc.Description) >= e.threshold {
			return acc, true
		}
	}

	return models.ChartAccount{}, false
}
