package testutils

import (
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/elnosh/walletgen/customer"
	"github.com/xuri/excelize/v2"
)

// TestMnemonic is the well known development mnemonic. Never fund it.
const TestMnemonic = "test test test test test test test test test test test junk"

// CustomerID returns a valid, zero padded customer ID for n.
func CustomerID(n uint64) string {
	return fmt.Sprintf("%064x", n)
}

func RandomCustomerID() string {
	b := make([]byte, customer.IDLength/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func CustomerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = CustomerID(uint64(i))
	}
	return ids
}

func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// WriteXLSX writes header and rows to the first sheet of a new workbook.
func WriteXLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	all := append([][]string{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]string, len(row))
		copy(values, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func ReadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

// SliceSource yields ids in order and counts how many were read.
type SliceSource struct {
	mu   sync.Mutex
	ids  []string
	read int
	// Err is returned instead of the id at position ErrAt, if set
	Err   error
	ErrAt int
}

func NewSliceSource(ids []string) *SliceSource {
	return &SliceSource{ids: ids}
}

func (s *SliceSource) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil && s.read == s.ErrAt {
		return "", s.Err
	}
	if s.read >= len(s.ids) {
		return "", io.EOF
	}
	id := s.ids[s.read]
	s.read++
	return id, nil
}

func (s *SliceSource) Read() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read
}

// MemorySink keeps every record written and the size of each write.
type MemorySink struct {
	Records []customer.Record
	Writes  []int
	// OnWrite, if set, is called before the batch is stored
	OnWrite func(batch []customer.Record) error
}

func (s *MemorySink) Write(batch []customer.Record) error {
	if s.OnWrite != nil {
		if err := s.OnWrite(batch); err != nil {
			return err
		}
	}
	s.Records = append(s.Records, batch...)
	s.Writes = append(s.Writes, len(batch))
	return nil
}
