package oddsmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ProbabilityPlaces is the rounding applied to implied probabilities
const ProbabilityPlaces = 4

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.6667
func AmericanToDecimal(american int) (decimal.Decimal, error) {
	if american == 0 {
		return decimal.Zero, fmt.Errorf("invalid American odds: cannot be 0")
	}

	a := decimal.NewFromInt(int64(american))
	if american > 0 {
		return a.Div(hundred).Add(one), nil
	}
	return hundred.Div(a.Neg()).Add(one), nil
}

// ImpliedProbability converts American odds to the implied win probability
// -110 → 0.5238
// +150 → 0.4000
func ImpliedProbability(american int) (decimal.Decimal, error) {
	dec, err := AmericanToDecimal(american)
	if err != nil {
		return decimal.Zero, err
	}
	return one.Div(dec).Round(ProbabilityPlaces), nil
}

// Hold returns the bookmaker margin of a two-way line: the amount the
// implied probabilities of both sides exceed 1.
// -110/-110 → 0.0476
func Hold(over, under int) (decimal.Decimal, error) {
	po, err := AmericanToDecimal(over)
	if err != nil {
		return decimal.Zero, err
	}
	pu, err := AmericanToDecimal(under)
	if err != nil {
		return decimal.Zero, err
	}
	return one.Div(po).Add(one.Div(pu)).Sub(one).Round(ProbabilityPlaces), nil
}

// Movement returns how many cents a price moved from first to current.
// Prices are placed on a continuous scale where -100 and +100 meet, so
// -105 → +105 is a 10 cent move. Positive means the price got longer.
func Movement(first, current int) (int, error) {
	if first == 0 || current == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	return cents(current) - cents(first), nil
}

func cents(american int) int {
	if american > 0 {
		return american - 100
	}
	return american + 100
}
