package supply

import (
	"context"
	"strings"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
)

// CatalogService serves catalog reads. Single lookups go through the
// cached, time-bounded lookup; lists read the table directly.
type CatalogService struct {
	lookup supply.CatalogLookup
	repo   supply.CatalogRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(lookup supply.CatalogLookup, repo supply.CatalogRepository) *CatalogService {
	return &CatalogService{lookup: lookup, repo: repo}
}

// Get resolves one supply code
func (s *CatalogService) Get(ctx context.Context, code string) (*CatalogEntryResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError(shared.FieldError{Field: "code", Message: "must not be empty"})
	}
	entry, err := s.lookup.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToCatalogEntryResponse(entry)
	return &resp, nil
}

// List returns one page of catalog entries
func (s *CatalogService) List(ctx context.Context, filter CatalogListFilter) ([]CatalogEntryResponse, int64, shared.Filter, error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.Limit,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if filter.Category != "" {
		f.Filters[supply.CatalogFilterCategory] = filter.Category
	}
	if filter.Search != "" {
		f.Filters[supply.CatalogFilterSearch] = filter.Search
	}
	if filter.ActiveOnly {
		f.Filters[supply.CatalogFilterActive] = true
	}
	f = f.Normalize()

	entries, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}
	items := make([]CatalogEntryResponse, len(entries))
	for i := range entries {
		items[i] = ToCatalogEntryResponse(&entries[i])
	}
	return items, total, f, nil
}
