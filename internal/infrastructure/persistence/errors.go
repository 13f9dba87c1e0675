package persistence

import (
	"context"
	"errors"

	"github.com/medsupply/backend/internal/domain/shared"
)

// Dependency names reported by DependencyTimeoutError
const (
	DependencyCatalog   = "catalog"
	DependencyDispensed = "dispensed"
	DependencyLedger    = "ledger"
)

// translateTimeout turns a context deadline into a DependencyTimeoutError for
// dependency and passes every other error through
func translateTimeout(dependency string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.NewDependencyTimeoutError(dependency, err)
	}
	return err
}
