package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid amount")
)

// DefaultCurrency is used when fixtures or requests omit a currency.
const DefaultCurrency = "BRL"

// Money keeps amounts as exact decimals so averaged nightly rates keep their cents.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Parse reads a decimal string such as "366.67".
func Parse(amount, currency string) (Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return New(value, currency)
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount decimal.Decimal, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// MustParse is Parse for literals.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: strings.ToUpper(currency)}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Neg returns the negated amount preserving currency.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(times)), Currency: m.Currency}
}

// Average divides the amount into n equal parts rounded half-up to cents.
func (m Money) Average(n int) Money {
	if n <= 0 {
		return m
	}
	return Money{Amount: m.Amount.DivRound(decimal.NewFromInt(int64(n)), 2), Currency: m.Currency}
}

// Cmp compares amounts only; callers compare currencies separately when it matters.
func (m Money) Cmp(other Money) int {
	return m.Amount.Cmp(other.Amount)
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports amounts below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Fixed renders the amount with two decimal places.
func (m Money) Fixed() string {
	return m.Amount.StringFixed(2)
}

func (m Money) String() string {
	return m.Currency + " " + m.Fixed()
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
