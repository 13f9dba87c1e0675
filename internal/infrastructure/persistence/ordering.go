package persistence

import "strings"

// sortSpec whitelists the columns a list endpoint may order by. Anything
// else falls back to the default column, so user input never reaches SQL.
type sortSpec struct {
	table      string
	columns    []string
	column     string
	descending bool
	tiebreak   string
}

var (
	usageRecordSort = sortSpec{
		table:      "usage_records",
		columns:    []string{"id", "created_at", "updated_at", "usage_datetime", "patient_hn", "department_code", "billing_status", "total"},
		column:     "usage_datetime",
		descending: true,
		tiebreak:   "id",
	}
	returnEventSort = sortSpec{
		table:      "return_events",
		columns:    []string{"id", "returned_at", "supply_code", "quantity", "reason"},
		column:     "returned_at",
		descending: true,
		tiebreak:   "id",
	}
	catalogSort = sortSpec{
		table:    "supply_catalog",
		columns:  []string{"code", "name", "category", "unit_price", "updated_at"},
		column:   "code",
		tiebreak: "code",
	}
)

func (s sortSpec) allows(column string) bool {
	for _, c := range s.columns {
		if c == column {
			return true
		}
	}
	return false
}

// clause renders "<table>.<col> <DIR>, <table>.<tiebreak> ASC". The default
// direction applies only when the caller picked neither column nor direction.
func (s sortSpec) clause(orderBy, orderDir string) string {
	column := strings.TrimSpace(orderBy)
	if !s.allows(column) {
		column = s.column
	}

	desc := s.descending
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		desc = false
	case "DESC":
		desc = true
	}

	var sb strings.Builder
	sb.WriteString(s.table + "." + column)
	if desc {
		sb.WriteString(" DESC")
	} else {
		sb.WriteString(" ASC")
	}
	if s.tiebreak != "" && column != s.tiebreak {
		sb.WriteString(", " + s.table + "." + s.tiebreak + " ASC")
	}
	return sb.String()
}
