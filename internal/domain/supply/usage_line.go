package supply

import (
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PriceSourceKind tells where a line's unit price came from
type PriceSourceKind string

const (
	PriceSourceCatalog  PriceSourceKind = "catalog"
	PriceSourceOverride PriceSourceKind = "override"
)

// IsValid checks if the kind is known
func (k PriceSourceKind) IsValid() bool {
	return k == PriceSourceCatalog || k == PriceSourceOverride
}

// UsageLineEntry is one supply line of a usage record
type UsageLineEntry struct {
	LineNo           int
	SupplyCode       string
	SupplyName       string
	Unit             string
	QuantityUsed     int
	QuantityReturned int
	UnitPrice        decimal.Decimal
	PriceSource      PriceSourceKind
	TotalPrice       decimal.Decimal
	ExpiryDate       *time.Time
}

// NetQuantity returns the quantity used net of returns
func (l UsageLineEntry) NetQuantity() int {
	return l.QuantityUsed - l.QuantityReturned
}

// MaxReturnable returns how much can still be returned on this line
func (l UsageLineEntry) MaxReturnable() int {
	return l.NetQuantity()
}

// State returns the quantity state reported by InvalidQuantityError
func (l UsageLineEntry) State() shared.LineState {
	return shared.LineState{
		SupplyCode:       l.SupplyCode,
		QuantityUsed:     l.QuantityUsed,
		QuantityReturned: l.QuantityReturned,
		MaxReturnable:    l.MaxReturnable(),
	}
}

func (l *UsageLineEntry) recalculate() {
	l.TotalPrice = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.NetQuantity())))
}

// applyReturn adds qty to the returned quantity if it stays within bounds
func (l *UsageLineEntry) applyReturn(qty int) error {
	if qty <= 0 {
		return shared.NewInvalidQuantityError(l.State(), qty, "return quantity must be positive")
	}
	if l.QuantityReturned+qty > l.QuantityUsed {
		return shared.NewInvalidQuantityError(l.State(), qty, "cannot return more than was used")
	}
	l.QuantityReturned += qty
	l.recalculate()
	return nil
}
