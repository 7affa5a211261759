package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tably/ingest-svc/internal/service/models/currency"
)

// Money is an exact amount in minor currency units (e.g. cents).
// All arithmetic inside the pipeline happens on the integer amount;
// conversion from sender representations happens once, at parse time.
type Money struct {
	AmountMinorUnits int64             `json:"amountMinorUnits"`
	Currency         currency.Currency `json:"currency"`
}

// FromMinorUnits wraps an amount that is already expressed in minor units.
func FromMinorUnits(amount int64, cur currency.Currency) Money {
	return Money{
		AmountMinorUnits: amount,
		Currency:         cur,
	}
}

// FromDecimalString converts a decimal major-unit amount, exactly as the
// sender supplied it, into minor units. The conversion shifts the supplied
// digits and rounds half away from zero, so "9.005" becomes 901 cents and no
// float reconstruction is involved.
func FromDecimalString(s string, cur currency.Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("failed to parse decimal amount %q: %w", s, err)
	}

	return FromDecimal(d, cur), nil
}

// FromDecimal converts an already-decoded decimal major-unit amount into
// minor units, rounding half away from zero.
func FromDecimal(d decimal.Decimal, cur currency.Currency) Money {
	return Money{
		AmountMinorUnits: d.Shift(cur.MinorUnitExponent()).Round(0).IntPart(),
		Currency:         cur,
	}
}

// Add returns the sum of two amounts. Mixing currencies is a programming
// error inside a single-sender payload, so it returns an error rather than
// silently picking one.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}

	return Money{
		AmountMinorUnits: m.AmountMinorUnits + other.AmountMinorUnits,
		Currency:         m.Currency,
	}, nil
}

// MulInt multiplies the amount by an integer quantity.
func (m Money) MulInt(n int64) Money {
	return Money{
		AmountMinorUnits: m.AmountMinorUnits * n,
		Currency:         m.Currency,
	}
}

// IsZero reports whether the amount is zero regardless of currency.
func (m Money) IsZero() bool {
	return m.AmountMinorUnits == 0
}

func (m Money) String() string {
	exp := m.Currency.MinorUnitExponent()

	return decimal.New(m.AmountMinorUnits, -exp).StringFixed(exp) + " " + m.Currency.String()
}
