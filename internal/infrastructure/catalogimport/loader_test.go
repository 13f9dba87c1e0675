package catalogimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalog = `code,name,category,unit,unit_price,active
GZ-01,Sterile gauze 4x4,dressing,pack,12.50,
SY-05,Syringe 5ml,injection,piece,3.00,yes
IV-SET,IV set,infusion,set,45,false
`

func TestParse(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		res, err := Parse(strings.NewReader(validCatalog), 10)
		require.NoError(t, err)
		require.True(t, res.Valid(), res.Errors.String())

		assert.Equal(t, 3, res.Rows)
		require.Len(t, res.Entries, 3)
		gauze := res.Entries[0]
		assert.Equal(t, "GZ-01", gauze.Code)
		assert.Equal(t, "dressing", gauze.Category)
		assert.True(t, gauze.UnitPrice.Equal(decimal.RequireFromString("12.50")))
		assert.True(t, gauze.Active)
		assert.False(t, res.Entries[2].Active)
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := Parse(strings.NewReader("code,name,unit\nGZ-01,Gauze,pack\n"), 10)
		require.ErrorIs(t, err, ErrMissingHeader)
		assert.Contains(t, err.Error(), "unit_price")
	})

	t.Run("header only", func(t *testing.T) {
		_, err := Parse(strings.NewReader("code,name,unit,unit_price\n"), 10)
		assert.ErrorIs(t, err, ErrNoDataRows)
	})

	t.Run("row problems are collected", func(t *testing.T) {
		csv := `code,name,unit,unit_price,active
GZ-01,Gauze,pack,12.50,
,Nameless,pack,1.00,
SY-05,Syringe,piece,abc,
SY-10,Syringe 10ml,piece,-1,
SY-20,Syringe 20ml,piece,1.005,
SY-30,Syringe 30ml,piece,2.00,maybe
GZ-01,Gauze again,pack,13.00,
`
		res, err := Parse(strings.NewReader(csv), 10)
		require.NoError(t, err)

		assert.Equal(t, 7, res.Rows)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, "GZ-01", res.Entries[0].Code)

		got := map[int]RowError{}
		for _, e := range res.Errors.Items() {
			got[e.Row] = e
		}
		require.Len(t, got, 6)
		assert.Equal(t, ErrCodeRequired, got[3].Code)
		assert.Equal(t, ColumnCode, got[3].Column)
		assert.Equal(t, "must be a decimal number", got[4].Message)
		assert.Equal(t, "unit_price", got[5].Column)
		assert.Equal(t, "must not be negative", got[5].Message)
		assert.Equal(t, "must have at most 2 decimal places", got[6].Message)
		assert.Equal(t, ColumnActive, got[7].Column)
		assert.Equal(t, ErrCodeDuplicateCode, got[8].Code)
		assert.Contains(t, got[8].Message, "row 2")
	})
}

type recordingStore struct {
	saved  []string
	failOn string
}

func (s *recordingStore) Save(_ context.Context, entry *supply.CatalogEntry) error {
	if entry.Code == s.failOn {
		return errors.New("connection reset")
	}
	s.saved = append(s.saved, entry.Code)
	return nil
}

func TestApply(t *testing.T) {
	res, err := Parse(strings.NewReader(validCatalog), 10)
	require.NoError(t, err)

	t.Run("saves every entry", func(t *testing.T) {
		store := &recordingStore{}
		n, err := Apply(context.Background(), store, res.Entries, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"GZ-01", "SY-05", "IV-SET"}, store.saved)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		store := &recordingStore{failOn: "SY-05"}
		n, err := Apply(context.Background(), store, res.Entries, nil)
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Contains(t, err.Error(), "SY-05")
	})
}
