package normalize

import (
	"math"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "padaria do joão", "PADARIA DO JOAO"},
		{"accents stripped", "JOSÉ AÇÚCAR LTDA", "JOSE ACUCAR LTDA"},
		{"whitespace collapsed", "  ACME   COMERCIO \t LTDA ", "ACME COMERCIO LTDA"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"cedilla", "CRÉD.LIQUIDAÇÃO COBRANÇA", "CRED.LIQUIDACAO COBRANCA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHashCollapsesCosmeticVariants(t *testing.T) {
	variants := []string{
		"Padaria do João LTDA",
		"PADARIA DO JOAO LTDA",
		"  padaria   do  joão ltda ",
	}
	base := Hash(variants[0])
	if base == "" {
		t.Fatal("expected non-empty hash")
	}
	if len(base) != 64 {
		t.Fatalf("hash length = %d, want 64", len(base))
	}
	for _, v := range variants[1:] {
		if got := Hash(v); got != base {
			t.Errorf("Hash(%q) = %s, want %s", v, got, base)
		}
	}
	if Hash("Empresa Diferente") == base {
		t.Error("distinct payers must not share a hash")
	}
}

func TestHashEmptyInput(t *testing.T) {
	if got := Hash("   "); got != "" {
		t.Errorf("Hash of blank text = %q, want empty", got)
	}
}

func TestRuleKey(t *testing.T) {
	tests := []struct {
		name       string
		complement string
		origin     string
		want       string
	}{
		{
			"billing keys on payer segment",
			"C - ACME LTDA | 1.500,00 | CRÉD.LIQUIDAÇÃO COBRANÇA | 15/03/2025",
			"francesinha_marco.xlsx",
			"C - ACME LTDA",
		},
		{
			"late interest keys on payer segment",
			"C - ACME LTDA | 10,00 | CRÉD.LIQUIDAÇÃO COBRANÇA | 15/03/2025 | Juros de Mora",
			"Juros de Mora",
			"C - ACME LTDA",
		},
		{
			"statement with trailing segments keys on first two",
			"D - TARIFA COBRANÇA | BANCO X | 15/03/2025",
			"extrato.ofx",
			"D - TARIFA COBRANÇA | BANCO X",
		},
		{
			"short statement complement keys whole",
			"D - TARIFA COBRANÇA | BANCO X",
			"extrato.ofx",
			"D - TARIFA COBRANÇA | BANCO X",
		},
		{
			"no pipe at all",
			"D - SAQUE",
			"extrato.ofx",
			"D - SAQUE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RuleKey(tt.complement, tt.origin); got != tt.want {
				t.Errorf("RuleKey(%q, %q) = %q, want %q", tt.complement, tt.origin, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1.500,00", 1500.00, false},
		{"150,75", 150.75, false},
		{"0,01", 0.01, false},
		{"1.234.567,89", 1234567.89, false},
		{" 10,00 ", 10.00, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1500.0, "1500,00"},
		{150.75, "150,75"},
		{0.1, "0,10"},
		{0, "0,00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDateBR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-15", "15/03/2025"},
		{"2025-03-15 10:30:00", "15/03/2025"},
		{"2025-03-15T10:30:00", "15/03/2025"},
		{"15/03/2025", "15/03/2025"},
		{"", ""},
		{"not-a-date", "not-a-date"},
	}
	for _, tt := range tests {
		if got := FormatDateBR(tt.in); got != tt.want {
			t.Errorf("FormatDateBR(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("ACME LTDA", "acme ltda"); got != 1 {
		t.Errorf("identical normalized strings: similarity = %v, want 1", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("empty vs empty = %v, want 1", got)
	}
	// One substitution in a 9-rune string.
	got := Similarity("ACME LTDA", "ACMO LTDA")
	want := 1 - 1.0/9.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
	if got := Similarity("ACME LTDA", "ZZZZZZZZZ"); got > 0.2 {
		t.Errorf("unrelated strings: similarity = %v, want near 0", got)
	}
}
