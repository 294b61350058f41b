package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a party's available (non-escrowed) balance of the native asset.
type Account struct {
	Address      Address         `json:"address"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanCover returns true if the available balance covers amount.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// MaxAmountDigits matches the NUMERIC(78, 0) amount columns: every uint256
// value fits.
const MaxAmountDigits = 78

// ValidAmount reports whether d is a positive whole number of base units of
// at most MaxAmountDigits digits. The exponent is bounded before any
// arithmetic so "1e400000000" is rejected without being expanded.
func ValidAmount(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	exp := int(d.Exponent())
	if exp > MaxAmountDigits || exp < -MaxAmountDigits {
		return false
	}
	if d.NumDigits()+exp > MaxAmountDigits {
		return false
	}
	return d.IsInteger()
}
