package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/odyssey-erp/stockcount/internal/counting"
)

// Delimiter separates export fields.
const Delimiter = ";"

// WriteCSV serialises the ledger with a header row, every field quoted.
func WriteCSV(w io.Writer, counts []counting.ProductCount) error {
	if len(counts) == 0 {
		return ErrEmptyExport
	}
	qw := newQuotedWriter(w)
	if err := gocsv.MarshalCSV(Rows(counts), qw); err != nil {
		return fmt.Errorf("export: marshal csv: %w", err)
	}
	qw.Flush()
	return qw.Error()
}

// quotedWriter satisfies gocsv.CSVWriter and always quotes, which encoding/csv
// does not offer. Rows are separated by CRLF; the last row has no terminator.
type quotedWriter struct {
	w    *bufio.Writer
	rows int
	err  error
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(w)}
}

func (q *quotedWriter) Write(row []string) error {
	if q.err != nil {
		return q.err
	}
	if q.rows > 0 {
		if _, q.err = q.w.WriteString("\r\n"); q.err != nil {
			return q.err
		}
	}
	q.rows++
	for i, field := range row {
		if i > 0 {
			if _, q.err = q.w.WriteString(Delimiter); q.err != nil {
				return q.err
			}
		}
		quoted := `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		if _, q.err = q.w.WriteString(quoted); q.err != nil {
			return q.err
		}
	}
	return nil
}

func (q *quotedWriter) Flush() {
	if q.err != nil {
		return
	}
	q.err = q.w.Flush()
}

func (q *quotedWriter) Error() error {
	return q.err
}
