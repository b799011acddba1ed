package bankimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Stable(t *testing.T) {
	m := credit(55000, day(2026, 9, 5), "CTR-2026-014", "ALQUILER SEPT")
	fp := Fingerprint(m)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(m))
}

func TestFingerprint_NormalizesText(t *testing.T) {
	a := credit(55000, day(2026, 9, 5), "CTR-2026-014", "ALQUILER  SEPT")
	b := credit(55000, day(2026, 9, 5), " ctr-2026-014 ", "alquiler sept")
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DistinguishesMovements(t *testing.T) {
	base := credit(55000, day(2026, 9, 5), "CTR-2026-014")

	otherAmount := base
	otherAmount.Amount = -55000
	otherDate := base
	otherDate.ValueDate = day(2026, 9, 6)
	otherAccount := base
	otherAccount.Account = "2100-0418-0200099999"

	fp := Fingerprint(base)
	assert.NotEqual(t, fp, Fingerprint(otherAmount))
	assert.NotEqual(t, fp, Fingerprint(otherDate))
	assert.NotEqual(t, fp, Fingerprint(otherAccount))
}

func TestFingerprinter_RepeatedLinesInOneStatement(t *testing.T) {
	fee := credit(-300, day(2026, 9, 30))

	f := newFingerprinter()
	first, second := f.next(fee), f.next(fee)
	assert.NotEqual(t, first, second)
	assert.Equal(t, Fingerprint(fee), first)

	again := newFingerprinter()
	assert.Equal(t, first, again.next(fee))
	assert.Equal(t, second, again.next(fee))
}
