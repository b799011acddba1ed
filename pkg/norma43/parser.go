package norma43

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const maxConceptRecords = 5

// Option configures a Parser.
type Option func(*Parser)

// Lenient turns totals mismatches into warnings instead of errors. Malformed
// records are still rejected.
func Lenient() Option {
	return func(p *Parser) { p.lenient = true }
}

// Parser reads Norma 43 files.
type Parser struct {
	lenient bool
}

// NewParser returns a Parser, strict unless Lenient is passed.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is shorthand for NewParser(opts...).Parse(r).
func Parse(r io.Reader, opts ...Option) (*Statement, error) {
	return NewParser(opts...).Parse(r)
}

// Parse reads a whole statement. Input that is not valid UTF-8 is decoded as
// ISO-8859-1, the encoding most Spanish banks export.
func (p *Parser) Parse(r io.Reader) (*Statement, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	if !utf8.Valid(raw) {
		raw, err = charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding statement: %w", err)
		}
	}

	st := &Statement{}
	var (
		acct    *Account
		last    *Movement
		lineNo  int
		sawEnd  bool
		records int
	)

	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sawEnd {
			return nil, p.fail(lineNo, "", "data after end of file record")
		}
		if utf8.RuneCountInString(line) > recordLen {
			return nil, p.fail(lineNo, "", fmt.Sprintf("record longer than %d characters", recordLen))
		}
		rec := newRecord(line)
		code := rec.field(0, 2)

		switch code {
		case RecordHeader:
			if acct != nil && acct.Totals == nil {
				return nil, p.fail(lineNo, code, "account header before previous account totals")
			}
			acct, err = parseHeader(rec)
			if err != nil {
				return nil, p.wrap(lineNo, code, err)
			}
			st.Accounts = append(st.Accounts, acct)
			last = nil

		case RecordMovement:
			if acct == nil || acct.Totals != nil {
				return nil, p.fail(lineNo, code, "movement outside an account")
			}
			m, err := parseMovement(rec)
			if err != nil {
				return nil, p.wrap(lineNo, code, err)
			}
			m.Line = lineNo
			m.Account = acct.ID()
			m.Currency = acct.Currency
			acct.Movements = append(acct.Movements, m)
			last = &acct.Movements[len(acct.Movements)-1]

		case RecordConcept:
			if last == nil {
				return nil, p.fail(lineNo, code, "complementary concept without a movement")
			}
			if len(last.Concepts) >= maxConceptRecords*2 {
				return nil, p.fail(lineNo, code, fmt.Sprintf("more than %d concept records", maxConceptRecords))
			}
			for _, c := range []string{rec.text(4, 42), rec.text(42, 80)} {
				if c != "" {
					last.Concepts = append(last.Concepts, c)
				}
			}

		case RecordEquivalence:
			if last == nil {
				return nil, p.fail(lineNo, code, "currency equivalence without a movement")
			}
			amt, err := rec.amount(7, 21)
			if err != nil {
				return nil, p.wrap(lineNo, code, err)
			}
			if last.Amount < 0 {
				amt = -amt
			}
			last.Equivalence = &Equivalence{Currency: CurrencyCode(rec.field(4, 7)), Amount: amt}

		case RecordTotals:
			if acct == nil || acct.Totals != nil {
				return nil, p.fail(lineNo, code, "account totals without an account header")
			}
			t, err := parseTotals(rec)
			if err != nil {
				return nil, p.wrap(lineNo, code, err)
			}
			if key := rec.field(2, 6) + "-" + rec.field(6, 10) + "-" + rec.field(10, 20); key != acct.ID() {
				msg := fmt.Sprintf("totals record is for account %s, open account is %s", key, acct.ID())
				if !p.lenient {
					return nil, &ParseError{Line: lineNo, Record: code, Msg: msg, Err: ErrTotalsMismatch}
				}
				st.Warnings = append(st.Warnings, msg)
			}
			acct.Totals = t
			last = nil
			if err := p.checkAccount(st, acct); err != nil {
				return nil, p.wrap(lineNo, code, err)
			}

		case RecordEnd:
			if acct != nil && acct.Totals == nil {
				return nil, p.fail(lineNo, code, "end of file before account totals")
			}
			n, err := rec.integer(20, 26)
			if err != nil {
				return nil, p.wrap(lineNo, code, err)
			}
			if n != records {
				msg := fmt.Sprintf("end record declares %d records, found %d", n, records)
				if !p.lenient {
					return nil, &ParseError{Line: lineNo, Record: code, Msg: msg, Err: ErrTotalsMismatch}
				}
				st.Warnings = append(st.Warnings, msg)
			}
			sawEnd = true

		default:
			return nil, p.fail(lineNo, "", fmt.Sprintf("unknown record code %q", code))
		}
		records++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning statement: %w", err)
	}

	if len(st.Accounts) == 0 {
		return nil, ErrEmptyFile
	}
	if !sawEnd {
		if acct.Totals == nil {
			return nil, p.fail(lineNo, "", "missing account totals record")
		}
		if !p.lenient {
			return nil, p.fail(lineNo, "", "missing end of file record")
		}
		st.Warnings = append(st.Warnings, "missing end of file record")
	}
	st.RecordCount = records
	return st, nil
}

// checkAccount compares the 33 record with the movements actually read.
func (p *Parser) checkAccount(st *Statement, a *Account) error {
	var debits, credits int
	var debitTotal, creditTotal Amount
	for _, m := range a.Movements {
		if m.Amount < 0 {
			debits++
			debitTotal -= m.Amount
		} else {
			credits++
			creditTotal += m.Amount
		}
	}

	t := a.Totals
	var problems []string
	if debits != t.DebitCount || debitTotal != t.DebitTotal {
		problems = append(problems, fmt.Sprintf("debits: declared %d totalling %s, found %d totalling %s",
			t.DebitCount, t.DebitTotal, debits, debitTotal))
	}
	if credits != t.CreditCount || creditTotal != t.CreditTotal {
		problems = append(problems, fmt.Sprintf("credits: declared %d totalling %s, found %d totalling %s",
			t.CreditCount, t.CreditTotal, credits, creditTotal))
	}
	if want := a.InitialBalance + t.CreditTotal - t.DebitTotal; want != t.FinalBalance {
		problems = append(problems, fmt.Sprintf("final balance %s does not equal initial %s + credits - debits (%s)",
			t.FinalBalance, a.InitialBalance, want))
	}
	if len(problems) == 0 {
		return nil
	}
	msg := fmt.Sprintf("account %s: %s", a.ID(), strings.Join(problems, "; "))
	if p.lenient {
		st.Warnings = append(st.Warnings, msg)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTotalsMismatch, msg)
}

func parseHeader(rec record) (*Account, error) {
	start, err := rec.date(20, 26)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := rec.date(26, 32)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	bal, err := rec.signedAmount(32, 33, 47)
	if err != nil {
		return nil, fmt.Errorf("initial balance: %w", err)
	}
	bank, branch, account := rec.field(2, 6), rec.field(6, 10), rec.field(10, 20)
	if !isDigits(bank) || !isDigits(branch) || !isDigits(account) {
		return nil, fmt.Errorf("%w: account number must be numeric", ErrInvalidRecord)
	}
	return &Account{
		BankCode:       bank,
		BranchCode:     branch,
		AccountNumber:  account,
		StartDate:      start,
		EndDate:        end,
		InitialBalance: bal,
		Currency:       CurrencyCode(rec.field(47, 50)),
		InfoMode:       rec.field(50, 51),
		Name:           rec.text(51, 77),
	}, nil
}

func parseMovement(rec record) (Movement, error) {
	op, err := rec.date(10, 16)
	if err != nil {
		return Movement{}, fmt.Errorf("operation date: %w", err)
	}
	val, err := rec.date(16, 22)
	if err != nil {
		return Movement{}, fmt.Errorf("value date: %w", err)
	}
	amt, err := rec.signedAmount(27, 28, 42)
	if err != nil {
		return Movement{}, fmt.Errorf("amount: %w", err)
	}
	return Movement{
		BranchOrigin:   rec.field(6, 10),
		OperationDate:  op,
		ValueDate:      val,
		CommonConcept:  rec.field(22, 24),
		OwnConcept:     rec.field(24, 27),
		Amount:         amt,
		DocumentNumber: rec.text(42, 52),
		Reference1:     rec.text(52, 64),
		Reference2:     rec.text(64, 80),
	}, nil
}

func parseTotals(rec record) (*Totals, error) {
	dc, err := rec.integer(20, 25)
	if err != nil {
		return nil, fmt.Errorf("debit count: %w", err)
	}
	dt, err := rec.amount(25, 39)
	if err != nil {
		return nil, fmt.Errorf("debit total: %w", err)
	}
	cc, err := rec.integer(39, 44)
	if err != nil {
		return nil, fmt.Errorf("credit count: %w", err)
	}
	ct, err := rec.amount(44, 58)
	if err != nil {
		return nil, fmt.Errorf("credit total: %w", err)
	}
	fb, err := rec.signedAmount(58, 59, 73)
	if err != nil {
		return nil, fmt.Errorf("final balance: %w", err)
	}
	return &Totals{
		DebitCount:   dc,
		DebitTotal:   dt,
		CreditCount:  cc,
		CreditTotal:  ct,
		FinalBalance: fb,
		Currency:     CurrencyCode(rec.field(73, 76)),
	}, nil
}

// record is one line padded to 80 runes.
type record []rune

func newRecord(line string) record {
	r := []rune(line)
	for len(r) < recordLen {
		r = append(r, ' ')
	}
	return record(r)
}

func (r record) field(from, to int) string {
	return string(r[from:to])
}

func (r record) text(from, to int) string {
	return strings.TrimSpace(string(r[from:to]))
}

func (r record) integer(from, to int) (int, error) {
	s := r.field(from, to)
	if !isDigits(s) {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidRecord, s)
	}
	return strconv.Atoi(s)
}

func (r record) amount(from, to int) (Amount, error) {
	s := r.field(from, to)
	if !isDigits(s) {
		return 0, fmt.Errorf("%w: amount %q is not numeric", ErrInvalidRecord, s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", ErrInvalidRecord, s, err)
	}
	return Amount(v), nil
}

// signedAmount reads a debit/credit key (1 debit, 2 credit) followed by an
// unsigned amount.
func (r record) signedAmount(keyPos, from, to int) (Amount, error) {
	amt, err := r.amount(from, to)
	if err != nil {
		return 0, err
	}
	switch key := r.field(keyPos, keyPos+1); key {
	case "1":
		return -amt, nil
	case "2":
		return amt, nil
	default:
		return 0, fmt.Errorf("%w: debit/credit key %q", ErrInvalidRecord, key)
	}
}

func (r record) date(from, to int) (time.Time, error) {
	s := r.field(from, to)
	t, err := time.Parse("060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidRecord, s)
	}
	return t, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (p *Parser) fail(line int, code, msg string) error {
	return &ParseError{Line: line, Record: code, Msg: msg, Err: ErrInvalidRecord}
}

func (p *Parser) wrap(line int, code string, err error) error {
	return &ParseError{Line: line, Record: code, Msg: err.Error(), Err: err}
}
