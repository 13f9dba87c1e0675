package cache

import (
	"context"
	"errors"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
)

// TimeoutLookup bounds every Resolve call. Exceeding the bound yields a
// *shared.DependencyTimeoutError for the catalog.
type TimeoutLookup struct {
	next    supply.CatalogLookup
	timeout time.Duration
}

// NewTimeoutLookup wraps next. A non-positive timeout disables the bound but
// still translates deadline errors coming from the caller's context.
func NewTimeoutLookup(next supply.CatalogLookup, timeout time.Duration) *TimeoutLookup {
	return &TimeoutLookup{next: next, timeout: timeout}
}

// Resolve delegates to next under the configured deadline
func (l *TimeoutLookup) Resolve(ctx context.Context, code string) (*supply.CatalogEntry, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	entry, err := l.next.Resolve(ctx, code)
	if err == nil {
		return entry, nil
	}
	var dte *shared.DependencyTimeoutError
	if errors.As(err, &dte) || errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, shared.NewDependencyTimeoutError(supply.SourceCatalog, err)
	}
	return nil, err
}

var _ supply.CatalogLookup = (*TimeoutLookup)(nil)
