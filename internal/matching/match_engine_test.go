package matching

import (
	"context"
	"errors"
	"testing"

	"conciliacontag/internal/models"
	"conciliacontag/internal/normalize"
)

type fakeRuleLookup struct {
	rules map[string]*models.ReconciliationRule
	err   error
	calls int
}

func (f *fakeRuleLookup) Lookup(ctx context.Context, companyID int64, hash string) (*models.ReconciliationRule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[hash], nil
}

func billingRecord(payer string) models.BillingRecord {
	return models.BillingRecord{
		CompanyID:  1,
		Payer:      payer,
		OriginFile: "francesinha_marco.xlsx",
	}
}

func TestClassifyBillingInterestBypass(t *testing.T) {
	lookup := &fakeRuleLookup{}
	e := NewEngine(lookup, 0.85)

	rec := billingRecord("ACME LTDA")
	rec.OriginFile = models.OriginLateInterest

	chart := []models.ChartAccount{{Code: "40001", Description: "ACME LTDA"}}
	cls, err := e.ClassifyBilling(context.Background(), rec, chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Outcome != models.OutcomeInterest {
		t.Errorf("outcome = %s, want %s", cls.Outcome, models.OutcomeInterest)
	}
	if cls.Credit != models.AccountLateInterest || cls.Historico != models.HistoricoLateInterest {
		t.Errorf("accounts = (%s, %s), want (%s, %s)",
			cls.Credit, cls.Historico, models.AccountLateInterest, models.HistoricoLateInterest)
	}
	if lookup.calls != 0 {
		t.Errorf("interest rows must bypass the rule store, got %d lookups", lookup.calls)
	}
}

func TestClassifyBillingRulePrecedesChart(t *testing.T) {
	hash := normalize.Hash("ACME LTDA")
	lookup := &fakeRuleLookup{rules: map[string]*models.ReconciliationRule{
		hash: {Hash: hash, Debit: "11111", Credit: "22222", Historico: "104"},
	}}
	e := NewEngine(lookup, 0.85)

	// Chart would also match; the saved rule must win.
	chart := []models.ChartAccount{{Code: "40001", Description: "ACME LTDA"}}
	cls, err := e.ClassifyBilling(context.Background(), billingRecord("Acme Ltda"), chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Outcome != models.OutcomeMatchedByRule {
		t.Errorf("outcome = %s, want %s", cls.Outcome, models.OutcomeMatchedByRule)
	}
	if cls.Debit != "11111" || cls.Credit != "22222" {
		t.Errorf("accounts = (%s, %s), want (11111, 22222)", cls.Debit, cls.Credit)
	}
	if cls.Hash != hash {
		t.Errorf("hash = %s, want %s", cls.Hash, hash)
	}
}

func TestClassifyBillingChartContainment(t *testing.T) {
	e := NewEngine(&fakeRuleLookup{}, 0.85)

	chart := []models.ChartAccount{
		{Code: "40001", Description: "TRANSPORTADORA"},
		{Code: "40002", Description: "ACME"},
	}
	cls, err := e.ClassifyBilling(context.Background(), billingRecord("ACME COMÉRCIO LTDA"), chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Outcome != models.OutcomeMatchedByChart {
		t.Fatalf("outcome = %s, want %s", cls.Outcome, models.OutcomeMatchedByChart)
	}
	if cls.Credit != "40002" {
		t.Errorf("credit = %s, want 40002", cls.Credit)
	}
	if cls.Historico != models.HistoricoNormal {
		t.Errorf("historico = %s, want %s", cls.Historico, models.HistoricoNormal)
	}
	if cls.ChartDescription != "ACME" {
		t.Errorf("chart description = %s, want ACME", cls.ChartDescription)
	}
}

func TestClassifyBillingChartFirstMatchWins(t *testing.T) {
	e := NewEngine(&fakeRuleLookup{}, 0.85)

	// Both fragments are contained in the payer; the chart's own order
	// decides, not match quality.
	chart := []models.ChartAccount{
		{Code: "40001", Description: "ACME"},
		{Code: "40002", Description: "ACME COMERCIO LTDA"},
	}
	cls, err := e.ClassifyBilling(context.Background(), billingRecord("ACME COMERCIO LTDA"), chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Credit != "40001" {
		t.Errorf("credit = %s, want first chart entry 40001", cls.Credit)
	}
}

func TestClassifyBillingFuzzyPass(t *testing.T) {
	e := NewEngine(&fakeRuleLookup{}, 0.85)

	// One typo out of 18 runes: no containment, but well above threshold.
	chart := []models.ChartAccount{{Code: "40003", Description: "ACME COMERCIO LTDA"}}
	cls, err := e.ClassifyBilling(context.Background(), billingRecord("ACME COMERCIO LTDB"), chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Outcome != models.OutcomeMatchedByChart {
		t.Errorf("outcome = %s, want %s", cls.Outcome, models.OutcomeMatchedByChart)
	}
	if cls.Credit != "40003" {
		t.Errorf("credit = %s, want 40003", cls.Credit)
	}
}

func TestClassifyBillingBelowThresholdUnmatched(t *testing.T) {
	e := NewEngine(&fakeRuleLookup{}, 0.85)

	chart := []models.ChartAccount{{Code: "40001", Description: "TRANSPORTADORA SUL"}}
	cls, err := e.ClassifyBilling(context.Background(), billingRecord("PADARIA CENTRAL"), chart)
	if err != nil {
		t.Fatal(err)
	}
	if cls.Outcome != models.OutcomeUnmatched {
		t.Errorf("outcome = %s, want %s", cls.Outcome, models.OutcomeUnmatched)
	}
	if cls.Credit != models.AccountNoMatch {
		t.Errorf("credit = %s, want %s", cls.Credit, models.AccountNoMatch)
	}
	if cls.Historico != models.HistoricoNormal {
		t.Errorf("historico = %s, want %s", cls.Historico, models.HistoricoNormal)
	}
}

func TestClassifyBillingLookupError(t *testing.T) {
	wantErr := errors.New("store down")
	e := NewEngine(&fakeRuleLookup{err: wantErr}, 0.85)

	_, err := e.ClassifyBilling(context.Background(), billingRecord("ACME"), nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestNewEngineDefaultsThreshold(t *testing.T) {
	e := NewEngine(&fakeRuleLookup{}, 0)
	if e.threshold != DefaultSimilarityThreshold {
		t.Errorf("threshold = %v, want %v", e.threshold, DefaultSimilarityThreshold)
	}
	e = NewEngine(&fakeRuleLookup{}, 1.5)
	if e.threshold != DefaultSimilarityThreshold {
		t.Errorf("threshold = %v, want %v", e.threshold, DefaultSimilarityThreshold)
	}
}
