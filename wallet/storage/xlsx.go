package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/elnosh/walletgen/customer"
	"github.com/xuri/excelize/v2"
)

const OutputSheet = "Customer Wallets"

// XLSXReader streams rows from the first worksheet of a workbook.
type XLSXReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	column int
}

func OpenXLSX(path string) (*XLSXReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("no worksheet found in %q", path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading worksheet %q of %q: %v", sheets[0], path, err)
	}

	r := &XLSXReader{file: f, rows: rows}
	if !rows.Next() {
		r.Close()
		return nil, fmt.Errorf("%q: %w: worksheet is empty", path, customer.ErrMissingColumn)
	}
	header, err := rows.Columns()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("error reading header of %q: %v", path, err)
	}

	r.column, err = customer.IDColumn(header)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return r, nil
}

func (r *XLSXReader) Next() (string, error) {
	for r.rows.Next() {
		row, err := r.rows.Columns()
		if err != nil {
			return "", err
		}
		if id := cellID(row, r.column); id != "" {
			return id, nil
		}
	}
	if err := r.rows.Error(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *XLSXReader) Close() error {
	r.rows.Close()
	return r.file.Close()
}

// XLSXWriter writes rows through a stream writer, which spills to a
// temporary file instead of keeping the sheet in memory.
type XLSXWriter struct {
	path   string
	tmp    string
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

func CreateXLSX(path string) (*XLSXWriter, error) {
	tmp, err := tempPath(path)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	w := &XLSXWriter{path: path, tmp: tmp, file: f}
	if err := f.SetSheetName(f.GetSheetName(0), OutputSheet); err != nil {
		w.Abort()
		return nil, err
	}
	w.stream, err = f.NewStreamWriter(OutputSheet)
	if err != nil {
		w.Abort()
		return nil, err
	}
	if err := w.writeRow(OutputHeader); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func (w *XLSXWriter) writeRow(row []string) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, value := range row {
		values[i] = value
	}
	return w.stream.SetRow(cell, values)
}

func (w *XLSXWriter) Write(records []customer.Record) error {
	for _, record := range records {
		if err := w.writeRow(Row(record)); err != nil {
			return err
		}
	}
	return nil
}

func (w *XLSXWriter) Commit() error {
	if err := w.stream.Flush(); err != nil {
		w.Abort()
		return err
	}
	if err := w.file.SaveAs(w.tmp); err != nil {
		w.Abort()
		return err
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmp)
		return err
	}
	return os.Rename(w.tmp, w.path)
}

func (w *XLSXWriter) Abort() error {
	w.file.Close()
	return os.Remove(w.tmp)
}
