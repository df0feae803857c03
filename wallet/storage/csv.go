package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/elnosh/walletgen/customer"
)

const utf8BOM = "\ufeff"

type CSVReader struct {
	file   *os.File
	reader *csv.Reader
	column int
}

func OpenCSV(path string) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("%q: %w: file is empty", path, customer.ErrMissingColumn)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading header of %q: %v", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	column, err := customer.IDColumn(header)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%q: %w", path, err)
	}

	return &CSVReader{file: f, reader: reader, column: column}, nil
}

func (r *CSVReader) Next() (string, error) {
	for {
		row, err := r.reader.Read()
		if err != nil {
			return "", err
		}
		if id := cellID(row, r.column); id != "" {
			return id, nil
		}
	}
}

func (r *CSVReader) Close() error {
	return r.file.Close()
}

type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

func CreateCSV(path string) (*CSVWriter, error) {
	tmp, err := tempPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}

	w := &CSVWriter{path: path, file: f, writer: csv.NewWriter(f)}
	if err := w.writer.Write(OutputHeader); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func (w *CSVWriter) Write(records []customer.Record) error {
	for _, record := range records {
		if err := w.writer.Write(Row(record)); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *CSVWriter) Commit() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.Abort()
		return err
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return err
	}
	return os.Rename(w.file.Name(), w.path)
}

func (w *CSVWriter) Abort() error {
	w.file.Close()
	return os.Remove(w.file.Name())
}
