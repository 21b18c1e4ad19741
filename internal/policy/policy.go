// Package policy decides what to do with a tracked item once its current
// price lookup has finished.
package policy

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/fetcher"
	"pricewatch/internal/storage"
)

// Action is the outcome of Evaluate.
type Action int

const (
	// ActionNoAction: price is above target, keep watching.
	ActionNoAction Action = iota
	// ActionAlert: price is at or below target, notify and remove.
	ActionAlert
	// ActionDefer: no usable price this sweep, retry on the next one.
	ActionDefer
)

func (a Action) String() string {
	switch a {
	case ActionAlert:
		return "alert"
	case ActionNoAction:
		return "no_action"
	case ActionDefer:
		return "defer"
	default:
		return "unknown"
	}
}

// Decision carries the action and, for alerts, the triggering price.
type Decision struct {
	Action Action
	Price  decimal.Decimal
}

// Evaluate compares a fetched price to the item's target. The comparison is
// exact: a price equal to the target alerts.
func Evaluate(item storage.TrackedItem, res fetcher.Result) Decision {
	if res.Outcome != fetcher.OutcomePrice {
		return Decision{Action: ActionDefer}
	}
	if res.Price.LessThanOrEqual(item.TargetPrice) {
		return Decision{Action: ActionAlert, Price: res.Price}
	}
	return Decision{Action: ActionNoAction, Price: res.Price}
}
