package catalogimport

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes
const (
	ErrCodeMalformedRow  = "MALFORMED_ROW"
	ErrCodeRequired      = "REQUIRED"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeDuplicateCode = "DUPLICATE_CODE"
)

var (
	ErrEmptyFile           = errors.New("CSV file is empty")
	ErrInvalidEncoding     = errors.New("file is not valid UTF-8; pass the source encoding")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrMissingHeader       = errors.New("CSV file missing header row")
	ErrNoDataRows          = errors.New("CSV file contains no data rows")
)

// RowError describes a problem with one cell or row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// NewRowError creates a RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{Row: row, Column: column, Code: code, Message: message}
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// RowErrors collects row errors up to a limit while counting all of them
type RowErrors struct {
	items []RowError
	limit int
	total int
}

// NewRowErrors creates a collection keeping at most limit errors
func NewRowErrors(limit int) *RowErrors {
	if limit <= 0 {
		limit = 100
	}
	return &RowErrors{limit: limit}
}

// Add records err
func (c *RowErrors) Add(err RowError) {
	c.total++
	if len(c.items) < c.limit {
		c.items = append(c.items, err)
	}
}

// Items returns the kept errors in input order
func (c *RowErrors) Items() []RowError {
	return c.items
}

// Total counts every error, kept or not
func (c *RowErrors) Total() int {
	return c.total
}

// Empty reports whether no error was recorded
func (c *RowErrors) Empty() bool {
	return c.total == 0
}

// Truncated reports whether errors beyond the limit were dropped
func (c *RowErrors) Truncated() bool {
	return c.total > c.limit
}

func (c *RowErrors) String() string {
	if c.Empty() {
		return "no errors"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", c.total)
	if c.Truncated() {
		fmt.Fprintf(&sb, " (showing first %d)", c.limit)
	}
	sb.WriteString(":")
	for _, e := range c.items {
		sb.WriteString("\n  ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}
