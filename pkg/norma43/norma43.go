// Package norma43 parses bank account statements in the Spanish banking
// association's Cuaderno 43 ("Norma 43") format: fixed 80-column records
// identified by a two-digit code.
package norma43

import (
	"fmt"
	"time"
)

// Record codes.
const (
	RecordHeader      = "11"
	RecordMovement    = "22"
	RecordConcept     = "23"
	RecordEquivalence = "24"
	RecordTotals      = "33"
	RecordEnd         = "88"
)

const recordLen = 80

// Amount is a monetary amount in cents. Debits are negative.
type Amount int64

// Float returns the amount in currency units.
func (a Amount) Float() float64 { return float64(a) / 100 }

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Statement is a parsed file. A file may hold several accounts.
type Statement struct {
	Accounts    []*Account
	RecordCount int
	Warnings    []string
}

// Movements returns every movement of every account in file order.
func (s *Statement) Movements() []Movement {
	var out []Movement
	for _, a := range s.Accounts {
		out = append(out, a.Movements...)
	}
	return out
}

// Account is one header (11) record with its movements and totals (33).
type Account struct {
	BankCode       string
	BranchCode     string
	AccountNumber  string
	StartDate      time.Time
	EndDate        time.Time
	InitialBalance Amount
	Currency       string
	InfoMode       string
	Name           string
	Movements      []Movement
	Totals         *Totals
}

// ID returns bank, branch and account number joined by dashes.
func (a *Account) ID() string {
	return a.BankCode + "-" + a.BranchCode + "-" + a.AccountNumber
}

// Movement is a 22 record plus its complementary records.
type Movement struct {
	Line           int
	Account        string
	BranchOrigin   string
	OperationDate  time.Time
	ValueDate      time.Time
	CommonConcept  string
	OwnConcept     string
	Amount         Amount
	Currency       string
	DocumentNumber string
	Reference1     string
	Reference2     string
	Concepts       []string
	Equivalence    *Equivalence
}

// IsCredit reports whether money came into the account.
func (m Movement) IsCredit() bool { return m.Amount > 0 }

// Equivalence is the optional 24 record giving the amount in another currency.
type Equivalence struct {
	Currency string
	Amount   Amount
}

// Totals is the 33 record closing an account.
type Totals struct {
	DebitCount   int
	DebitTotal   Amount
	CreditCount  int
	CreditTotal  Amount
	FinalBalance Amount
	Currency     string
}

var currencies = map[string]string{
	"978": "EUR",
	"840": "USD",
	"826": "GBP",
	"756": "CHF",
	"392": "JPY",
}

// CurrencyCode maps an ISO 4217 numeric code to its alphabetic code. Unknown
// codes are returned unchanged.
func CurrencyCode(numeric string) string {
	if c, ok := currencies[numeric]; ok {
		return c
	}
	return numeric
}
