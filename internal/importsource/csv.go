package importsource

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
)

type csvReader struct {
	r      *csv.Reader
	closer io.Closer
	cols   columnMap
	index  int
}

// NewCSV reads the header line and returns a reader over the data rows.
func NewCSV(r io.Reader) (RowReader, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperr.E(apperr.Validation, "importsource.NewCSV", "file is empty")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "importsource.NewCSV", err, "unreadable CSV header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}
	out := &csvReader{r: cr, cols: cols}
	if c, ok := r.(io.Closer); ok {
		out.closer = c
	}
	return out, nil
}

func (c *csvReader) Read() (Row, error) {
	for {
		record, err := c.r.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			c.index++
			return Row{}, &RowError{Row: c.index + 1, Err: perr.Err}
		}
		if err != nil {
			return Row{}, err
		}
		if blank(record) {
			continue
		}
		c.index++
		return c.cols.row(c.index+1, record), nil
	}
}

func (c *csvReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
