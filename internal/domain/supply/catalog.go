package supply

import (
	"context"
	"strings"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Catalog filter keys
const (
	CatalogFilterCategory = "category"
	CatalogFilterActive   = "active"
	CatalogFilterSearch   = "search"
)

// CatalogEntry is read-only reference data for one consumable supply
type CatalogEntry struct {
	Code      string
	Name      string
	Category  string
	Unit      string
	UnitPrice decimal.Decimal
	Active    bool
}

// NewCatalogEntry creates an active catalog entry
func NewCatalogEntry(code, name, category, unit string, unitPrice decimal.Decimal) (*CatalogEntry, error) {
	verr := shared.NewValidationError()
	code = strings.TrimSpace(code)
	if code == "" {
		verr.Add("code", "must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "must not be empty")
	}
	if strings.TrimSpace(unit) == "" {
		verr.Add("unit", "must not be empty")
	}
	if unitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return &CatalogEntry{
		Code:      code,
		Name:      name,
		Category:  category,
		Unit:      unit,
		UnitPrice: unitPrice,
		Active:    true,
	}, nil
}

// CatalogLookup resolves supply codes. Resolve returns a *shared.NotFoundError
// for unknown codes and a *shared.DependencyTimeoutError when the backing
// store does not answer in time.
type CatalogLookup interface {
	Resolve(ctx context.Context, code string) (*CatalogEntry, error)
}

// CatalogRepository gives read and maintenance access to the catalog table
type CatalogRepository interface {
	CatalogLookup
	FindAll(ctx context.Context, filter shared.Filter) ([]CatalogEntry, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Save(ctx context.Context, entry *CatalogEntry) error
}
