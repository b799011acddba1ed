package bankimport

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/rentdesk/rentdesk/pkg/norma43"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Fingerprint returns a stable SHA-256 hex digest identifying a movement
// across imports. Free-text fields are normalized so that padding and case
// differences between bank exports do not produce new fingerprints.
func Fingerprint(m norma43.Movement) string {
	fields := []string{
		normalizeText(m.Account),
		m.OperationDate.Format("2006-01-02"),
		m.ValueDate.Format("2006-01-02"),
		m.Amount.String(),
		normalizeText(m.CommonConcept),
		normalizeText(m.OwnConcept),
		normalizeText(m.DocumentNumber),
		normalizeText(m.Reference1),
		normalizeText(m.Reference2),
	}
	for _, c := range m.Concepts {
		fields = append(fields, normalizeText(c))
	}
	h := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return fmt.Sprintf("%x", h)
}

// fingerprinter disambiguates identical movements within one statement: the
// second identical line gets a different fingerprint than the first, and a
// re-import of the same file produces the same sequence again.
type fingerprinter struct {
	seen map[string]int
}

func newFingerprinter() *fingerprinter {
	return &fingerprinter{seen: make(map[string]int)}
}

func (f *fingerprinter) next(m norma43.Movement) string {
	fp := Fingerprint(m)
	n := f.seen[fp]
	f.seen[fp] = n + 1
	if n == 0 {
		return fp
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", fp, n)))
	return fmt.Sprintf("%x", h)
}

func normalizeText(s string) string {
	return strings.ToUpper(reWhitespace.ReplaceAllString(strings.TrimSpace(s), " "))
}
