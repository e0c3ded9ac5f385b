package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiter separates fields in import and export files.
const Delimiter = ';'

// Supported import charsets.
const (
	CharsetUTF8        = "utf-8"
	CharsetWindows1252 = "windows-1252"
	CharsetISO88591    = "iso-8859-1"
)

// ErrUnknownCharset is returned for charsets other than the supported ones.
var ErrUnknownCharset = errors.New("catalog: unknown charset")

// ReadOptions tunes how ReadRows decodes its input.
type ReadOptions struct {
	Charset string
}

// LookupCharset returns the decoder for name. Empty means UTF-8.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CharsetUTF8, "utf8":
		return unicode.UTF8, nil
	case CharsetWindows1252, "cp1252":
		return charmap.Windows1252, nil
	case CharsetISO88591, "latin1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, name)
	}
}

// ReadRows parses a header-led, semicolon separated file into rows. Empty lines
// are skipped and short rows leave their trailing columns absent.
func ReadRows(r io.Reader, opts ReadOptions) ([]Row, error) {
	enc, err := LookupCharset(opts.Charset)
	if err != nil {
		return nil, err
	}
	var dec transform.Transformer = enc.NewDecoder()
	if enc == unicode.UTF8 {
		dec = unicode.BOMOverride(enc.NewDecoder())
	}

	reader := csv.NewReader(transform.NewReader(r, dec))
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
