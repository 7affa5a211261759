package currency

import (
	"database/sql/driver"
	"errors"
)

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyRUB Currency = "RUB"
)

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// MinorUnitExponent returns the number of decimal digits between the major
// and the minor unit. Every supported currency uses two.
func (c Currency) MinorUnitExponent() int32 {
	return 2
}

func ParseCurrency(s string) (Currency, error) {
	switch s {
	case CurrencyEUR.String():
		return CurrencyEUR, nil
	case CurrencyUSD.String():
		return CurrencyUSD, nil
	case CurrencyRUB.String():
		return CurrencyRUB, nil
	default:
		return "", ErrInvalidCurrency
	}
}
