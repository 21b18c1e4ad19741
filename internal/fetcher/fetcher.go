package fetcher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceNotFound means the page was fetched but carried no price element.
var ErrPriceNotFound = errors.New("price element not found")

// Outcome tags a Result.
type Outcome int

const (
	OutcomePrice Outcome = iota
	OutcomeNotFound
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrice:
		return "price"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Result is the outcome of one price lookup. Price is set only for
// OutcomePrice; Err is set for the two failure outcomes.
type Result struct {
	Outcome Outcome
	Price   decimal.Decimal
	Err     error
}

// Found wraps a successfully parsed price.
func Found(price decimal.Decimal) Result {
	return Result{Outcome: OutcomePrice, Price: price}
}

// NotFound reports a fetched page without a price.
func NotFound() Result {
	return Result{Outcome: OutcomeNotFound, Err: ErrPriceNotFound}
}

// Transient reports a network or parse failure worth retrying next sweep.
func Transient(err error) Result {
	if err == nil {
		err = errors.New("transient fetch failure")
	}
	return Result{Outcome: OutcomeTransient, Err: err}
}

// PriceFetcher retrieves the current price behind a source reference.
// Implementations never panic or return unmodelled failures: every problem
// maps to NotFound or Transient.
type PriceFetcher interface {
	Fetch(ctx context.Context, source string) Result
}

// Func adapts a plain function to PriceFetcher.
type Func func(ctx context.Context, source string) Result

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, source string) Result {
	return f(ctx, source)
}
