package bankimport

import (
	"math"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/rentdesk/rentdesk/pkg/models"
	"github.com/rentdesk/rentdesk/pkg/norma43"
	cal "github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/es"
)

// Match kinds reported by the reconciler.
const (
	MatchNone      = ""
	MatchReference = "reference"
	MatchAmount    = "amount_date"
)

// Reconciler pairs incoming credit movements with open payments.
type Reconciler struct {
	calendar   *cal.BusinessCalendar
	windowDays int
}

// NewReconciler builds a reconciler that accepts amount-only matches whose
// due date is within windowDays Spanish business days of the value date.
func NewReconciler(windowDays int) *Reconciler {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(es.Holidays...)
	return &Reconciler{calendar: c, windowDays: windowDays}
}

// Match returns the payment a credit movement settles, or nil. A payment
// whose contract reference appears in the movement wins; otherwise a single
// payment with the same amount due close to the value date is accepted.
// Ambiguous amount-only candidates are left unmatched.
func (r *Reconciler) Match(m norma43.Movement, open []*models.OpenPayment) (*models.OpenPayment, string) {
	if !m.IsCredit() {
		return nil, MatchNone
	}

	text := tokenize(strings.Join(append([]string{
		m.Reference1, m.Reference2, m.OwnConcept,
	}, m.Concepts...), " "))

	var byRef, byDate []*models.OpenPayment
	for _, p := range open {
		if toCents(p.Amount) != int64(m.Amount) {
			continue
		}
		if citesReference(text, p.ContractReference) {
			byRef = append(byRef, p)
			continue
		}
		if r.BusinessDaysBetween(p.DueDate, m.ValueDate) <= r.windowDays {
			byDate = append(byDate, p)
		}
	}

	if len(byRef) > 0 {
		return earliestDue(byRef), MatchReference
	}
	if len(byDate) == 1 {
		return byDate[0], MatchAmount
	}
	return nil, MatchNone
}

// BusinessDaysBetween counts the workdays after the earlier date up to and
// including the later one. Equal dates are zero days apart.
func (r *Reconciler) BusinessDaysBetween(a, b time.Time) int {
	a = truncateDay(a)
	b = truncateDay(b)
	if b.Before(a) {
		a, b = b, a
	}
	n := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if r.calendar.IsWorkday(d) {
			n++
		}
	}
	return n
}

// citesReference reports whether the reference appears in text as a whole
// run of tokens, or glued into a single token when the bank dropped the
// separators. CTR-1 is not cited by CTR-12.
func citesReference(text []string, reference string) bool {
	ref := tokenize(reference)
	if len(ref) == 0 {
		return false
	}
	compact := strings.Join(ref, "")
	for i, tok := range text {
		if tok == compact {
			return true
		}
		if i+len(ref) <= len(text) && slices.Equal(text[i:i+len(ref)], ref) {
			return true
		}
	}
	return false
}

// tokenize upper-cases s and splits it on anything that is not a letter or
// a digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func earliestDue(ps []*models.OpenPayment) *models.OpenPayment {
	best := ps[0]
	for _, p := range ps[1:] {
		if p.DueDate.Before(best.DueDate) {
			best = p
		}
	}
	return best
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
