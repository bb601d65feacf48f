package core

import "github.com/shopspring/decimal"

// SplitMode classifies how the two shares of an expense relate to its total.
// It is always derived from the amounts and never stored.
type SplitMode int

const (
	SplitCustom SplitMode = iota
	SplitEqual
)

func (m SplitMode) String() string {
	if m == SplitEqual {
		return "equal"
	}
	return "custom"
}

// Tolerance is the largest share-sum discrepancy treated as rounding noise.
var Tolerance = Cents(1)

var two = decimal.NewFromInt(2)

// EqualSplit returns both shares as round(total/2, 2). Each share is rounded
// on its own, so odd-cent totals give shares one cent away from the total.
// Zero and negative totals are not rejected.
func EqualSplit(total Money) (share1, share2 Money) {
	half := MoneyFromDecimal(total.Decimal().Div(two))
	return half, half
}

// Balance is the outcome of comparing two shares against a total.
type Balance struct {
	// Remaining is total - (share1 + share2). Signed.
	Remaining       Money
	WithinTolerance bool
}

// CheckBalance computes the remaining amount and whether it is small enough
// to ignore. An out-of-tolerance balance is a warning for the caller to
// confirm, never a rejection.
func CheckBalance(total, share1, share2 Money) Balance {
	remaining := total.Sub(share1.Add(share2))
	return Balance{
		Remaining:       remaining,
		WithinTolerance: remaining.Abs().Cents <= Tolerance.Cents,
	}
}

// InferSplitMode reports SplitEqual iff the shares are identical and their
// sum is within tolerance of the total. A custom split that happens to be
// 50/50 is indistinguishable from an equal one.
func InferSplitMode(total, share1, share2 Money) SplitMode {
	if share1 == share2 && CheckBalance(total, share1, share2).WithinTolerance {
		return SplitEqual
	}
	return SplitCustom
}
