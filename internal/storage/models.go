package storage

import (
	"github.com/shopspring/decimal"
)

// TrackedItem is one product under price watch. Items are immutable once
// inserted; the checker deletes them after a delivered alert.
type TrackedItem struct {
	ID          int64
	SourceURL   string
	TargetPrice decimal.Decimal
	Recipient   string
}

// NewTrackedItem carries the fields accepted on insert; the store assigns the id.
type NewTrackedItem struct {
	SourceURL   string
	TargetPrice decimal.Decimal
	Recipient   string
}
