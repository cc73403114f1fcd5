// Package money is an amount in integer minor units of an ISO 4217 currency.
package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

type Money struct {
	Amount   int64
	Currency string
}

// New upper-cases currency and requires three ASCII letters.
func New(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return Money{}, ErrInvalidCurrency
		}
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Must is New for literals known to be valid.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Multiply(n int64) Money {
	m.Amount *= n
	return m
}

func (m Money) IsZero() bool { return m.Amount == 0 }

// String formats two decimal places, e.g. "350.00 USD".
func (m Money) String() string {
	units, sign := m.Amount, ""
	if units < 0 {
		units, sign = -units, "-"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, units/100, units%100, m.Currency)
}

// Sum totals values that must all share one currency. An empty sum is the
// zero Money with no currency.
func Sum(values ...Money) (Money, error) {
	var total Money
	for i, v := range values {
		if v.Currency == "" {
			return Money{}, ErrInvalidCurrency
		}
		if i == 0 {
			total.Currency = v.Currency
		} else if v.Currency != total.Currency {
			return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, total.Currency, v.Currency)
		}
		total.Amount += v.Amount
	}
	return total, nil
}
