package catalogimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		r, err := NewReader(strings.NewReader("\xEF\xBB\xBFcode,name\nGZ-01,Gauze"))
		require.NoError(t, err)
		require.NoError(t, r.ReadHeader())
		assert.Equal(t, []string{"code", "name"}, r.Headers())
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid UTF-8 without an encoding", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("code,name\nGZ-01,Caf\xE9"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("legacy single-byte encoding is decoded", func(t *testing.T) {
		r, err := NewReader(strings.NewReader("code,name\nGZ-01,Caf\xE9"), WithEncoding("windows-1252"))
		require.NoError(t, err)
		require.NoError(t, r.ReadHeader())

		row, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "Café", row.Get("name"))
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := NewReader(strings.NewReader("code\nX"), WithEncoding("no-such-charset"))
		assert.ErrorIs(t, err, ErrUnsupportedEncoding)
	})

	t.Run("custom delimiter", func(t *testing.T) {
		r, err := NewReader(strings.NewReader("code;name\nGZ-01;Gauze"), WithDelimiter(';'))
		require.NoError(t, err)
		require.NoError(t, r.ReadHeader())
		assert.Equal(t, []string{"code", "name"}, r.Headers())
	})
}

func TestReader_ReadHeader(t *testing.T) {
	r, err := NewReader(strings.NewReader("  Code , NAME ,Unit_Price\nGZ-01,Gauze,12.50"))
	require.NoError(t, err)
	require.NoError(t, r.ReadHeader())

	assert.Equal(t, []string{"code", "name", "unit_price"}, r.Headers())
	assert.Empty(t, r.Missing("code", "unit_price"))
	assert.Equal(t, []string{"unit"}, r.Missing("code", "unit"))
}

func TestReader_Next(t *testing.T) {
	r, err := NewReader(strings.NewReader("code,name,unit\nGZ-01, Gauze \nSY-05,Syringe,piece\n,,\n"))
	require.NoError(t, err)
	require.NoError(t, r.ReadHeader())

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "Gauze", first.Get("name"))
	assert.Equal(t, "", first.Get("unit"), "short rows pad missing cells")

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "piece", second.Get("unit"))
	assert.False(t, second.Blank())

	blank, err := r.Next()
	require.NoError(t, err)
	assert.True(t, blank.Blank())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRowErrors(t *testing.T) {
	errs := NewRowErrors(2)
	assert.True(t, errs.Empty())
	assert.Equal(t, "no errors", errs.String())

	errs.Add(NewRowError(2, "code", ErrCodeRequired, "is required"))
	errs.Add(NewRowError(3, "", ErrCodeMalformedRow, "bare quote"))
	errs.Add(NewRowError(4, "unit", ErrCodeRequired, "is required"))

	assert.Equal(t, 3, errs.Total())
	assert.Len(t, errs.Items(), 2)
	assert.True(t, errs.Truncated())
	assert.Contains(t, errs.String(), "3 error(s) found (showing first 2)")
	assert.Contains(t, errs.String(), "row 2, column 'code': is required")
	assert.Contains(t, errs.String(), "row 3: bare quote")
}
