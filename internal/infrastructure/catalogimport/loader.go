package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog CSV columns
const (
	ColumnCode      = "code"
	ColumnName      = "name"
	ColumnCategory  = "category"
	ColumnUnit      = "unit"
	ColumnUnitPrice = "unit_price"
	ColumnActive    = "active"
)

// RequiredColumns must be present in the header
var RequiredColumns = []string{ColumnCode, ColumnName, ColumnUnit, ColumnUnitPrice}

// Result is the outcome of parsing a catalog file
type Result struct {
	Entries []*supply.CatalogEntry
	Rows    int
	Errors  *RowErrors
}

// Valid reports whether every row parsed cleanly
func (r *Result) Valid() bool {
	return r.Errors.Empty()
}

// Parse reads a catalog CSV. Row problems are collected in the result;
// the returned error is reserved for unreadable input.
func Parse(src io.Reader, maxErrors int, opts ...ReaderOption) (*Result, error) {
	reader, err := NewReader(src, opts...)
	if err != nil {
		return nil, err
	}
	if err := reader.ReadHeader(); err != nil {
		return nil, err
	}
	if missing := reader.Missing(RequiredColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrMissingHeader, strings.Join(missing, ", "))
	}

	res := &Result{Errors: NewRowErrors(maxErrors)}
	seen := make(map[string]int)
	for {
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr RowError
		if errors.As(err, &rowErr) {
			res.Rows++
			res.Errors.Add(rowErr)
			continue
		}
		if err != nil {
			return nil, err
		}
		if row.Blank() {
			continue
		}
		res.Rows++

		entry, ok := parseRow(row, res.Errors)
		if !ok {
			continue
		}
		if first, dup := seen[entry.Code]; dup {
			res.Errors.Add(RowError{
				Row: row.Line, Column: ColumnCode, Code: ErrCodeDuplicateCode, Value: entry.Code,
				Message: fmt.Sprintf("duplicate code (first seen in row %d)", first),
			})
			continue
		}
		seen[entry.Code] = row.Line
		res.Entries = append(res.Entries, entry)
	}
	if res.Rows == 0 {
		return nil, ErrNoDataRows
	}
	return res, nil
}

func parseRow(row *Row, errs *RowErrors) (*supply.CatalogEntry, bool) {
	ok := true
	for _, col := range RequiredColumns {
		if row.Get(col) == "" {
			errs.Add(NewRowError(row.Line, col, ErrCodeRequired, "is required"))
			ok = false
		}
	}
	if !ok {
		return nil, false
	}

	price, err := decimal.NewFromString(row.Get(ColumnUnitPrice))
	if err != nil {
		errs.Add(RowError{Row: row.Line, Column: ColumnUnitPrice, Code: ErrCodeInvalidValue,
			Message: "must be a decimal number", Value: row.Get(ColumnUnitPrice)})
		return nil, false
	}
	if !price.Equal(price.Round(2)) {
		errs.Add(RowError{Row: row.Line, Column: ColumnUnitPrice, Code: ErrCodeInvalidValue,
			Message: "must have at most 2 decimal places", Value: row.Get(ColumnUnitPrice)})
		return nil, false
	}
	active, err := parseActive(row.Get(ColumnActive))
	if err != nil {
		errs.Add(RowError{Row: row.Line, Column: ColumnActive, Code: ErrCodeInvalidValue,
			Message: err.Error(), Value: row.Get(ColumnActive)})
		return nil, false
	}

	entry, err := supply.NewCatalogEntry(row.Get(ColumnCode), row.Get(ColumnName), row.Get(ColumnCategory), row.Get(ColumnUnit), price)
	if err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				errs.Add(NewRowError(row.Line, f.Field, ErrCodeInvalidValue, f.Message))
			}
		} else {
			errs.Add(NewRowError(row.Line, "", ErrCodeInvalidValue, err.Error()))
		}
		return nil, false
	}
	entry.Active = active
	return entry, true
}

// parseActive accepts the usual spreadsheet spellings; empty means active
func parseActive(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	}
	return false, errors.New("must be true or false")
}

// Store is the catalog write side used by Apply
type Store interface {
	Save(ctx context.Context, entry *supply.CatalogEntry) error
}

// Apply upserts every entry keyed by code and returns how many were saved
// before the first failure
func Apply(ctx context.Context, store Store, entries []*supply.CatalogEntry, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, entry := range entries {
		if err := store.Save(ctx, entry); err != nil {
			return i, fmt.Errorf("saving %s: %w", entry.Code, err)
		}
		logger.Debug("Catalog entry saved", zap.String("code", entry.Code), zap.String("unit_price", entry.UnitPrice.StringFixed(2)))
	}
	logger.Info("Catalog import applied", zap.Int("entries", len(entries)))
	return len(entries), nil
}
