package importsource

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/debt-recovery/internal/pkg/apperr"
)

type xlsxReader struct {
	file  *excelize.File
	rows  *excelize.Rows
	cols  columnMap
	index int
}

// NewXLSX reads the first worksheet of a workbook.
func NewXLSX(r io.Reader) (RowReader, error) {
	const op = "importsource.NewXLSX"
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, err, "unreadable spreadsheet")
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, apperr.E(apperr.Validation, op, "workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, apperr.Wrap(apperr.Validation, op, err, "unreadable worksheet")
	}
	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, apperr.E(apperr.Validation, op, "file is empty")
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, apperr.Wrap(apperr.Validation, op, err, "unreadable header row")
	}
	cols, err := mapHeader(header)
	if err != nil {
		rows.Close()
		f.Close()
		return nil, err
	}
	return &xlsxReader{file: f, rows: rows, cols: cols}, nil
}

func (x *xlsxReader) Read() (Row, error) {
	for x.rows.Next() {
		record, err := x.rows.Columns()
		if err != nil {
			x.index++
			return Row{}, &RowError{Row: x.index + 1, Err: err}
		}
		if blank(record) {
			continue
		}
		x.index++
		return x.cols.row(x.index+1, record), nil
	}
	if err := x.rows.Error(); err != nil {
		return Row{}, err
	}
	return Row{}, io.EOF
}

func (x *xlsxReader) Close() error {
	x.rows.Close()
	return x.file.Close()
}
