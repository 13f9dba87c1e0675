// Package catalogimport loads supply catalog entries from CSV exports of
// the hospital materials system.
package catalogimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const utf8CheckSize = 4096

// Reader reads header-keyed rows from a CSV stream
type Reader struct {
	delimiter rune
	encoding  string

	csv     *csv.Reader
	headers []string
	index   map[string]int
	line    int
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithDelimiter sets the field delimiter (default comma)
func WithDelimiter(d rune) ReaderOption {
	return func(r *Reader) {
		r.delimiter = d
	}
}

// WithEncoding decodes the input from the named IANA charset, e.g.
// "windows-874" for legacy Thai exports. Empty means UTF-8.
func WithEncoding(name string) ReaderOption {
	return func(r *Reader) {
		r.encoding = name
	}
}

// NewReader prepares src for reading. A UTF-8 byte order mark is dropped.
func NewReader(src io.Reader, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{delimiter: ',', index: make(map[string]int)}
	for _, opt := range opts {
		opt(r)
	}

	enc, err := lookupEncoding(r.encoding)
	if err != nil {
		return nil, err
	}
	// BOMOverride strips the UTF-8 mark and otherwise defers to enc
	decoded := transform.NewReader(src, unicode.BOMOverride(enc.NewDecoder()))

	buf := bufio.NewReader(decoded)
	head, err := buf.Peek(utf8CheckSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(head))) == 0 {
		return nil, ErrEmptyFile
	}
	if len(head) == utf8CheckSize {
		head = trimPartialRune(head)
	}
	if !utf8.Valid(head) {
		return nil, ErrInvalidEncoding
	}

	r.csv = csv.NewReader(buf)
	r.csv.Comma = r.delimiter
	r.csv.LazyQuotes = true
	r.csv.TrimLeadingSpace = true
	r.csv.FieldsPerRecord = -1
	return r, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return encoding.Nop, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}
	return enc, nil
}

// trimPartialRune drops a multi-byte sequence cut off by the peek window
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return b[:len(b)-i]
		}
	}
	return b
}

// ReadHeader reads the header row. Names are trimmed and lower-cased.
func (r *Reader) ReadHeader() error {
	record, err := r.csv.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.line = 1
	r.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(h))
		r.headers[i] = name
		if name != "" {
			r.index[name] = i
		}
	}
	if len(r.index) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// Headers returns the normalized header names
func (r *Reader) Headers() []string {
	return r.headers
}

// Missing lists the required columns absent from the header
func (r *Reader) Missing(required ...string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := r.index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data row keyed by header name
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value of column, or "" when absent
func (row *Row) Get(column string) string {
	return row.Values[column]
}

// Blank reports whether every cell is empty
func (row *Row) Blank() bool {
	for _, v := range row.Values {
		if v != "" {
			return false
		}
	}
	return true
}

// Next returns the next data row, or io.EOF at the end of input
func (r *Reader) Next() (*Row, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.line++
	if err != nil {
		return nil, NewRowError(r.line, "", ErrCodeMalformedRow, err.Error())
	}

	row := &Row{Line: r.line, Values: make(map[string]string, len(r.index))}
	for name, i := range r.index {
		if i < len(record) {
			row.Values[name] = strings.TrimSpace(record[i])
		} else {
			row.Values[name] = ""
		}
	}
	return row, nil
}
