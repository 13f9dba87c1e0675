package supply

import (
	"fmt"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the tax policy does not name one
const DefaultCurrency = "THB"

// moneyPlaces is the number of decimal places kept for tax amounts
const moneyPlaces = 2

// BillingStatus represents the billing lifecycle of a usage record
type BillingStatus string

const (
	BillingStatusDraft    BillingStatus = "draft"
	BillingStatusBilled   BillingStatus = "billed"
	BillingStatusDisputed BillingStatus = "disputed"
	BillingStatusSettled  BillingStatus = "settled"
)

// IsValid checks if the status is a known BillingStatus
func (s BillingStatus) IsValid() bool {
	switch s {
	case BillingStatusDraft, BillingStatusBilled, BillingStatusDisputed, BillingStatusSettled:
		return true
	}
	return false
}

// String returns the string representation of BillingStatus
func (s BillingStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether target is a forward move from s
func (s BillingStatus) CanTransitionTo(target BillingStatus) bool {
	switch s {
	case BillingStatusDraft:
		return target == BillingStatusBilled
	case BillingStatusBilled:
		return target == BillingStatusDisputed || target == BillingStatusSettled
	case BillingStatusDisputed:
		// a resolved dispute settles at the corrected total
		return target == BillingStatusSettled
	}
	return false
}

// AllowsLineChanges reports whether quantities may still change in this status
func (s BillingStatus) AllowsLineChanges() bool {
	return s == BillingStatusDraft || s == BillingStatusDisputed
}

// Billing is the derived billing block of a usage record
type Billing struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Currency string
	Status   BillingStatus
}

// BillingTotals is the output of a billing recomputation
type BillingTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// TaxPolicy is the externally supplied billing policy
type TaxPolicy struct {
	Rate     decimal.Decimal
	Currency string
}

// DefaultTaxPolicy returns a zero-rate policy in the default currency
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{Rate: decimal.Zero, Currency: DefaultCurrency}
}

// BillingCalculator derives subtotal, tax and total from line entries
type BillingCalculator struct {
	policy TaxPolicy
}

// NewBillingCalculator creates a calculator for the given policy.
// The rate is a fraction in [0, 1].
func NewBillingCalculator(policy TaxPolicy) (*BillingCalculator, error) {
	if policy.Rate.IsNegative() || policy.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("tax rate must be between 0 and 1, got %s", policy.Rate))
	}
	if policy.Currency == "" {
		policy.Currency = DefaultCurrency
	}
	return &BillingCalculator{policy: policy}, nil
}

// Currency returns the currency totals are expressed in
func (c *BillingCalculator) Currency() string {
	return c.policy.Currency
}

// TaxRate returns the configured tax rate
func (c *BillingCalculator) TaxRate() decimal.Decimal {
	return c.policy.Rate
}

// Recompute derives totals from the current line entries
func (c *BillingCalculator) Recompute(lines []UsageLineEntry) BillingTotals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.TotalPrice)
	}
	tax := subtotal.Mul(c.policy.Rate).Round(moneyPlaces)
	return BillingTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
