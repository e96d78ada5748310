package rates

import "github.com/shopspring/decimal"

// ToDisplay converts a balance in minor units (cents) to the major-unit
// amount at rate, rounded to two decimal places. It is for presentation
// only.
func ToDisplay(balance int64, rate float64) string {
	return decimal.New(balance, -2).Mul(decimal.NewFromFloat(rate)).StringFixed(2)
}
