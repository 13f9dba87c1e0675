package supply

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
)

// Window is a half-open time range [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and creates a window
func NewWindow(start, end time.Time) (Window, error) {
	verr := shared.NewValidationError()
	if start.IsZero() {
		verr.Add("window_start", "is required")
	}
	if end.IsZero() {
		verr.Add("window_end", "is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		verr.Add("window_end", "must be after window_start")
	}
	if err := verr.ErrOrNil(); err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// TrailingWindow returns the window of length d ending at end
func TrailingWindow(end time.Time, d time.Duration) Window {
	return Window{Start: end.Add(-d), End: end}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ReconciliationFilter narrows a comparison
type ReconciliationFilter struct {
	DepartmentCode string
	SupplyCodes    []string
}

func (f ReconciliationFilter) matchesCode(code string) bool {
	if len(f.SupplyCodes) == 0 {
		return true
	}
	for _, c := range f.SupplyCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (f ReconciliationFilter) matchesDepartment(dept string) bool {
	return f.DepartmentCode == "" || strings.EqualFold(f.DepartmentCode, dept)
}

// DispensedRecord is externally sourced dispensing data
type DispensedRecord struct {
	SupplyCode        string
	DepartmentCode    string
	QuantityDispensed int
	DispensedAt       time.Time
}

// DispensedBatch is one answer of the dispensed-data source. Complete is
// false when the source could only return part of the window, so an empty
// batch is only a confirmed zero when Complete is true.
type DispensedBatch struct {
	Records  []DispensedRecord
	Complete bool
}

// DispensedSource fetches dispensing data for a window
type DispensedSource interface {
	FetchDispensed(ctx context.Context, window Window, filter ReconciliationFilter) (DispensedBatch, error)
}

// UsageTotal is the ledger's usage for one supply code in a window
type UsageTotal struct {
	SupplyCode       string
	QuantityUsed     int
	QuantityReturned int
}

// ResultStatus classifies one reconciliation row
type ResultStatus string

const (
	ResultMatched     ResultStatus = "matched"
	ResultDiscrepancy ResultStatus = "discrepancy"
	// ResultUnaccounted marks codes dispensed with no recorded usage
	ResultUnaccounted ResultStatus = "unaccounted"
	// ResultOverReported marks codes used with no dispensing record
	ResultOverReported ResultStatus = "over_reported"
	// ResultAwaitingDispensed replaces over_reported while dispensed data is incomplete
	ResultAwaitingDispensed ResultStatus = "awaiting_dispensed"
)

// ReconciliationResult compares dispensed and used quantities for one code
type ReconciliationResult struct {
	SupplyCode     string
	WindowStart    time.Time
	WindowEnd      time.Time
	TotalDispensed int
	TotalUsed      int
	TotalReturned  int
	Difference     int
	Status         ResultStatus
}

// AbsDifference returns |Difference|
func (r ReconciliationResult) AbsDifference() int {
	if r.Difference < 0 {
		return -r.Difference
	}
	return r.Difference
}

// Source names reported in ReconciliationReport.IncompleteSources
const (
	SourceDispensed = "dispensed"
	SourceCatalog   = "catalog"
	SourceLedger    = "ledger"
)

// ReconciliationReport is the ephemeral outcome of one comparison
type ReconciliationReport struct {
	Window            Window
	Results           []ReconciliationResult
	Complete          bool
	IncompleteSources []string
	GeneratedAt       time.Time
}

// Discrepancies counts rows whose difference is not zero
func (r ReconciliationReport) Discrepancies() int {
	n := 0
	for _, res := range r.Results {
		if res.Difference != 0 {
			n++
		}
	}
	return n
}

type codeTally struct {
	dispensed    int
	used         int
	returned     int
	hasDispensed bool
	hasUsage     bool
}

// Reconcile aggregates dispensed records and usage totals by supply code and
// returns one result per code seen in either input, ordered by absolute
// difference descending then supply code ascending. dispensedComplete tells
// whether the dispensed input covers the whole window. Reconcile is pure.
func Reconcile(window Window, filter ReconciliationFilter, dispensed []DispensedRecord, usage []UsageTotal, dispensedComplete bool) []ReconciliationResult {
	tallies := make(map[string]*codeTally)
	get := func(code string) *codeTally {
		t, ok := tallies[code]
		if !ok {
			t = &codeTally{}
			tallies[code] = t
		}
		return t
	}

	for _, d := range dispensed {
		if !window.Contains(d.DispensedAt) || !filter.matchesCode(d.SupplyCode) || !filter.matchesDepartment(d.DepartmentCode) {
			continue
		}
		t := get(d.SupplyCode)
		t.dispensed += d.QuantityDispensed
		t.hasDispensed = true
	}
	for _, u := range usage {
		if !filter.matchesCode(u.SupplyCode) {
			continue
		}
		t := get(u.SupplyCode)
		t.used += u.QuantityUsed
		t.returned += u.QuantityReturned
		t.hasUsage = true
	}

	results := make([]ReconciliationResult, 0, len(tallies))
	for code, t := range tallies {
		diff := t.dispensed - (t.used - t.returned)
		results = append(results, ReconciliationResult{
			SupplyCode:     code,
			WindowStart:    window.Start,
			WindowEnd:      window.End,
			TotalDispensed: t.dispensed,
			TotalUsed:      t.used,
			TotalReturned:  t.returned,
			Difference:     diff,
			Status:         classify(t, diff, dispensedComplete),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		ai, aj := results[i].AbsDifference(), results[j].AbsDifference()
		if ai != aj {
			return ai > aj
		}
		return results[i].SupplyCode < results[j].SupplyCode
	})
	return results
}

func classify(t *codeTally, diff int, dispensedComplete bool) ResultStatus {
	switch {
	case !t.hasDispensed && !dispensedComplete:
		return ResultAwaitingDispensed
	case diff == 0:
		return ResultMatched
	case !t.hasUsage:
		return ResultUnaccounted
	case !t.hasDispensed:
		return ResultOverReported
	default:
		return ResultDiscrepancy
	}
}
