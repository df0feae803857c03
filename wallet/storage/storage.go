// Package storage reads customer IDs from tabular files and writes the
// resulting address table back out.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elnosh/walletgen/customer"
)

const (
	HeaderCustomerID    = "Customer ID"
	HeaderWalletAddress = "Wallet Address"
	HeaderError         = "Error"

	// written in the address column of failed records
	ErrorAddress = "ERROR"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// OutputHeader is the header row of every tabular output.
var OutputHeader = []string{HeaderCustomerID, HeaderWalletAddress, HeaderError}

// Reader yields trimmed, non-empty customer IDs and io.EOF at the end.
type Reader interface {
	Next() (string, error)
	Close() error
}

// Writer accumulates records into a temporary file. Commit moves it into
// place, Abort discards it.
type Writer interface {
	Write(records []customer.Record) error
	Commit() error
	Abort() error
}

// OpenReader opens path based on its extension (.csv or .xlsx) and
// locates the customer ID column in its header row.
func OpenReader(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OpenCSV(path)
	case ".xlsx":
		return OpenXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// CreateWriter creates a writer for path based on its extension
// (.csv, .xlsx, or .db for a bolt address registry).
func CreateWriter(path string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CreateCSV(path)
	case ".xlsx":
		return CreateXLSX(path)
	case ".db":
		return CreateBolt(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Row returns the output row of a record.
func Row(record customer.Record) []string {
	if record.Failed() {
		return []string{record.CustomerID, ErrorAddress, record.Reason()}
	}
	return []string{record.CustomerID, record.Address, ""}
}

// cellID returns the trimmed customer ID in row, or an empty string if
// the row is too short to have one.
func cellID(row []string, column int) string {
	if column >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[column])
}

// tempPath reserves a hidden file next to path so the final rename
// stays on the same filesystem. The extension of path is kept.
func tempPath(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
