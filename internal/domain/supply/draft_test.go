package supply

import (
	"context"
	"testing"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(verr *shared.ValidationError) []string {
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestUsageDraft_Validate(t *testing.T) {
	t.Run("valid draft", func(t *testing.T) {
		d := testDraft(LineDraft{SupplyCode: "SUP-001", QuantityUsed: 1})
		assert.False(t, d.Validate().HasErrors())
	})

	t.Run("reports every failing field", func(t *testing.T) {
		d := UsageDraft{
			Lines: []LineDraft{
				{SupplyCode: "SUP-001", QuantityUsed: 0},
				{SupplyCode: "", QuantityUsed: 2},
				{SupplyCode: "SUP-001", QuantityUsed: 1, Price: OverridePrice(decimal.RequireFromString("-1"))},
			},
		}
		verr := d.Validate()
		require.True(t, verr.HasErrors())

		names := fieldNames(verr)
		for _, want := range []string{
			"patient_hn",
			"patient_name_th",
			"patient_name_en",
			"usage_datetime",
			"usage_type",
			"department_code",
			"recorded_by_user_id",
			"supplies[0].quantity_used",
			"supplies[1].supply_code",
			"supplies[2].supply_code",
			"supplies[2].unit_price",
		} {
			assert.Contains(t, names, want)
		}
	})

	t.Run("one patient name is enough", func(t *testing.T) {
		d := testDraft(LineDraft{SupplyCode: "SUP-001", QuantityUsed: 1})
		d.PatientNameTH = ""
		assert.False(t, d.Validate().HasErrors())
	})

	t.Run("no lines", func(t *testing.T) {
		d := testDraft()
		assert.Contains(t, fieldNames(d.Validate()), "supplies")
	})
}

func TestValidateLines(t *testing.T) {
	verr := ValidateLines(nil)
	assert.Equal(t, []string{"supplies"}, fieldNames(verr))

	verr = ValidateLines([]LineDraft{{SupplyCode: "SUP-001", QuantityUsed: -3}})
	assert.Equal(t, []string{"supplies[0].quantity_used"}, fieldNames(verr))

	t.Run("override price scale", func(t *testing.T) {
		verr := ValidateLines([]LineDraft{
			{SupplyCode: "SUP-001", QuantityUsed: 3, Price: OverridePrice(decimal.RequireFromString("0.33333"))},
			{SupplyCode: "SUP-002", QuantityUsed: 1, Price: OverridePrice(decimal.RequireFromString("12.500"))},
			{SupplyCode: "SUP-003", QuantityUsed: 1, Price: OverridePrice(decimal.RequireFromString("7.25"))},
		})
		assert.Equal(t, []string{"supplies[0].unit_price"}, fieldNames(verr))
		assert.Equal(t, "must have at most 2 decimal places", verr.Fields[0].Message)
	})
}

func TestPriceSource(t *testing.T) {
	var zero PriceSource
	assert.Equal(t, PriceSourceCatalog, zero.Kind())
	_, ok := zero.Override()
	assert.False(t, ok)

	p := OverridePrice(decimal.RequireFromString("3.30"))
	price, ok := p.Override()
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("3.30")))
	assert.True(t, p.resolve(decimal.NewFromInt(99)).Equal(price))
	assert.True(t, CatalogPrice().resolve(decimal.NewFromInt(99)).Equal(decimal.NewFromInt(99)))
}

type slowCatalog struct{}

func (slowCatalog) Resolve(_ context.Context, code string) (*CatalogEntry, error) {
	return nil, shared.NewDependencyTimeoutError("catalog", context.DeadlineExceeded)
}

func TestBuildLines(t *testing.T) {
	t.Run("collects unknown and inactive codes", func(t *testing.T) {
		_, err := BuildLines(context.Background(), testCatalog(), []LineDraft{
			{SupplyCode: "SUP-404", QuantityUsed: 1},
			{SupplyCode: "SUP-OLD", QuantityUsed: 1},
			{SupplyCode: "SUP-001", QuantityUsed: 1},
		})
		var verr *shared.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"supplies[0].supply_code", "supplies[1].supply_code"}, fieldNames(verr))
	})

	t.Run("catalog timeout is not a validation error", func(t *testing.T) {
		_, err := BuildLines(context.Background(), slowCatalog{}, []LineDraft{{SupplyCode: "SUP-001", QuantityUsed: 1}})
		var terr *shared.DependencyTimeoutError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("snapshots catalog fields", func(t *testing.T) {
		expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
		lines, err := BuildLines(context.Background(), testCatalog(), []LineDraft{{SupplyCode: "SUP-002", QuantityUsed: 2, ExpiryDate: &expiry}})
		require.NoError(t, err)
		assert.Equal(t, "Syringe 5ml", lines[0].SupplyName)
		assert.Equal(t, "piece", lines[0].Unit)
		assert.Equal(t, &expiry, lines[0].ExpiryDate)
		assert.Equal(t, "25.00", lines[0].TotalPrice.StringFixed(2))
	})
}
