package supply

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PriceSource is the tagged choice between the catalog price and an
// explicit override captured at submission time. The zero value means
// catalog price.
type PriceSource struct {
	kind     PriceSourceKind
	override decimal.Decimal
}

// CatalogPrice selects the catalog's unit price
func CatalogPrice() PriceSource {
	return PriceSource{kind: PriceSourceCatalog}
}

// OverridePrice selects an explicit unit price
func OverridePrice(price decimal.Decimal) PriceSource {
	return PriceSource{kind: PriceSourceOverride, override: price}
}

// Kind returns which variant is selected
func (p PriceSource) Kind() PriceSourceKind {
	if p.kind == "" {
		return PriceSourceCatalog
	}
	return p.kind
}

// Override returns the explicit price and true for the override variant
func (p PriceSource) Override() (decimal.Decimal, bool) {
	if p.Kind() != PriceSourceOverride {
		return decimal.Zero, false
	}
	return p.override, true
}

// resolve picks the unit price given the catalog price
func (p PriceSource) resolve(catalogPrice decimal.Decimal) decimal.Decimal {
	if price, ok := p.Override(); ok {
		return price
	}
	return catalogPrice
}

// LineDraft is one requested line of a submission or amendment
type LineDraft struct {
	SupplyCode   string      `json:"supply_code" validate:"required,max=50"`
	QuantityUsed int         `json:"quantity_used" validate:"gt=0"`
	Price        PriceSource `json:"-" validate:"-"`
	ExpiryDate   *time.Time  `json:"expiry_date"`
}

// UsageDraft is the input of a usage submission
type UsageDraft struct {
	PatientHN        string      `json:"patient_hn" validate:"required,max=20"`
	PatientNameTH    string      `json:"patient_name_th" validate:"required_without=PatientNameEN,max=200"`
	PatientNameEN    string      `json:"patient_name_en" validate:"required_without=PatientNameTH,max=200"`
	UsageDateTime    time.Time   `json:"usage_datetime" validate:"required"`
	UsageType        string      `json:"usage_type" validate:"required,max=50"`
	Purpose          string      `json:"purpose" validate:"max=500"`
	DepartmentCode   string      `json:"department_code" validate:"required,max=50"`
	RecordedByUserID string      `json:"recorded_by_user_id" validate:"required,max=100"`
	Lines            []LineDraft `json:"supplies" validate:"required,min=1,dive"`
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the draft and reports every failing field
func (d UsageDraft) Validate() *shared.ValidationError {
	verr := validateStruct(d)
	verr.Merge(validateLineRules(d.Lines))
	return verr
}

// ValidateLines checks a replacement line set and reports every failing field
func ValidateLines(lines []LineDraft) *shared.ValidationError {
	verr := shared.NewValidationError()
	if len(lines) == 0 {
		verr.Add("supplies", "at least one supply line is required")
		return verr
	}
	for i, line := range lines {
		lineErr := validateStruct(line)
		for _, f := range lineErr.Fields {
			verr.Add(fmt.Sprintf("supplies[%d].%s", i, f.Field), f.Message)
		}
	}
	verr.Merge(validateLineRules(lines))
	return verr
}

// validateLineRules covers rules struct tags cannot express
func validateLineRules(lines []LineDraft) *shared.ValidationError {
	verr := shared.NewValidationError()
	seen := make(map[string]int, len(lines))
	for i, line := range lines {
		code := strings.TrimSpace(line.SupplyCode)
		if code != "" {
			if first, dup := seen[code]; dup {
				verr.Add(fmt.Sprintf("supplies[%d].supply_code", i),
					fmt.Sprintf("duplicates supplies[%d]", first))
			} else {
				seen[code] = i
			}
		}
		if price, ok := line.Price.Override(); ok {
			switch {
			case price.IsNegative():
				verr.Add(fmt.Sprintf("supplies[%d].unit_price", i), "must not be negative")
			case !price.Equal(price.Round(2)):
				verr.Add(fmt.Sprintf("supplies[%d].unit_price", i), "must have at most 2 decimal places")
			}
		}
	}
	return verr
}

func validateStruct(s any) *shared.ValidationError {
	verr := shared.NewValidationError()
	err := draftValidator.Struct(s)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("request", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), validationMessage(fe))
	}
	return verr
}

// fieldPath strips the root struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when the other patient name is empty"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

// BuildLines resolves each draft line against the catalog and returns the
// priced line entries. Unknown or inactive codes are reported together as a
// ValidationError; a catalog timeout is returned as is.
func BuildLines(ctx context.Context, catalog CatalogLookup, drafts []LineDraft) ([]UsageLineEntry, error) {
	verr := shared.NewValidationError()
	lines := make([]UsageLineEntry, 0, len(drafts))
	for i, d := range drafts {
		code := strings.TrimSpace(d.SupplyCode)
		entry, err := catalog.Resolve(ctx, code)
		if err != nil {
			var nf *shared.NotFoundError
			if errors.As(err, &nf) {
				verr.Add(fmt.Sprintf("supplies[%d].supply_code", i), fmt.Sprintf("unknown supply code %q", code))
				continue
			}
			return nil, err
		}
		if !entry.Active {
			verr.Add(fmt.Sprintf("supplies[%d].supply_code", i), fmt.Sprintf("supply %q is inactive", code))
			continue
		}
		line := UsageLineEntry{
			LineNo:       i + 1,
			SupplyCode:   entry.Code,
			SupplyName:   entry.Name,
			Unit:         entry.Unit,
			QuantityUsed: d.QuantityUsed,
			UnitPrice:    d.Price.resolve(entry.UnitPrice),
			PriceSource:  d.Price.Kind(),
			ExpiryDate:   d.ExpiryDate,
		}
		line.recalculate()
		lines = append(lines, line)
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return lines, nil
}
