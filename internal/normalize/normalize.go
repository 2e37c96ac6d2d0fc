// Package normalize holds the text and amount canonicalization used by
// matching and rule learning. Accounting names arrive inconsistently across
// source systems (case, accents, stray whitespace), so both hashing and
// comparison always operate on the normalized form.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Text canonicalizes free text: accents stripped via NFD decomposition,
// upper-cased, whitespace collapsed and trimmed.
func Text(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

// Hash returns the sha256 hex digest of the normalized text, or "" when the
// text normalizes to nothing. Cosmetic variations of the same payer collapse
// to the same hash.
func Hash(s string) string {
	n := Text(s)
	if n == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(n))
	return hex.EncodeToString(sum[:])
}

// RuleKey derives the stable rule key from a ledger complement and its
// origin tag. Billing and late-interest rows key on the segment before the
// first pipe (the payer); statement rows with a long complement key on the
// first two segments (memo and payee) so the settlement date never leaks
// into the key.
func RuleKey(complement, origin string) string {
	o := strings.ToLower(origin)
	if strings.Contains(o, "juros de mora") || strings.Contains(o, "francesinha") {
		head, _, _ := strings.Cut(complement, "|")
		return strings.TrimSpace(head)
	}
	parts := strings.Split(complement, "|")
	if len(parts) > 2 {
		return strings.TrimSpace(parts[0]) + " | " + strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(complement)
}

// ParseAmount converts a Brazilian-format display amount ("1.500,00") into
// its numeric shadow value. The display string itself is never rewritten
// from this value; the float exists only for validation and matching.
func ParseAmount(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("empty amount")
	}
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, ",", ".")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// FormatAmount renders an engine-derived value in the decimal-comma notation
// the downstream accounting import expects. Used only for amounts the engine
// itself computes (statement rows, late-interest expansion); parsed display
// strings pass through untouched.
func FormatAmount(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1)
}

// FormatDateBR renders a date in the dd/mm/yyyy notation of the ledger
// export. ISO dates (with or without a time part) are converted; anything
// already in dd/mm/yyyy form passes through untouched.
func FormatDateBR(s string) string {
	t := strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, t); err == nil {
			return parsed.Format("02/01/2006")
		}
	}
	return t
}

// Similarity returns a levenshtein ratio in [0,1] over the normalized forms.
func Similarity(a, b string) float64 {
	na, nb := Text(a), Text(b)
	if na == "" && nb == "" {
		return 1
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(d)/float64(longest)
}
