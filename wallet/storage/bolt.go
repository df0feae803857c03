package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/elnosh/walletgen/customer"
	bolt "go.etcd.io/bbolt"
)

const (
	// every record in output order, keyed by its big-endian sequence number
	recordsBucket = "records"
	// customer ID to address, successes only
	addressesBucket = "addresses"
)

// RegistryEntry is the value stored for each record in the records bucket.
type RegistryEntry struct {
	CustomerID string          `json:"customer_id"`
	Address    string          `json:"wallet_address,omitempty"`
	Err        *customer.Error `json:"error,omitempty"`
}

// BoltWriter stores the address table as a key/value registry. The
// records bucket holds one entry per record so repeated and oversized
// customer IDs never collide, and the addresses bucket indexes the
// successful ones by customer ID.
type BoltWriter struct {
	path string
	tmp  string
	bolt *bolt.DB
}

func CreateBolt(path string) (*BoltWriter, error) {
	tmp, err := tempPath(path)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(tmp, 0600, nil)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}

	w := &BoltWriter{path: path, tmp: tmp, bolt: db}
	if err := w.initBuckets(); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func (w *BoltWriter) initBuckets() error {
	return w.bolt.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		if err != nil {
			return err
		}

		_, err = tx.CreateBucketIfNotExists([]byte(addressesBucket))
		if err != nil {
			return err
		}

		return nil
	})
}

func (w *BoltWriter) Write(records []customer.Record) error {
	return w.bolt.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket([]byte(recordsBucket))
		addresses := tx.Bucket([]byte(addressesBucket))

		for _, record := range records {
			seq, err := entries.NextSequence()
			if err != nil {
				return err
			}

			value, err := json.Marshal(RegistryEntry{
				CustomerID: record.CustomerID,
				Address:    record.Address,
				Err:        record.Err,
			})
			if err != nil {
				return fmt.Errorf("json.Marshal: %v", err)
			}
			if err := entries.Put(sequenceKey(seq), value); err != nil {
				return err
			}

			if !record.Failed() {
				if err := addresses.Put([]byte(record.CustomerID), []byte(record.Address)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (w *BoltWriter) Commit() error {
	if err := w.bolt.Close(); err != nil {
		os.Remove(w.tmp)
		return err
	}
	return os.Rename(w.tmp, w.path)
}

func (w *BoltWriter) Abort() error {
	w.bolt.Close()
	return os.Remove(w.tmp)
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// ReadRegistry returns every entry of a registry written by BoltWriter,
// in output order.
func ReadRegistry(path string) ([]RegistryEntry, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var entries []RegistryEntry
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))
		if b == nil {
			return fmt.Errorf("%q: bucket %q not found", path, recordsBucket)
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry RegistryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("error reading entry %d: %v", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
