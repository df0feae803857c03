// Package customer contains the rules for turning an opaque customer
// identifier into a hierarchical deterministic derivation path.
package customer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// IDLength is the exact number of hex characters in a customer ID.
	IDLength = 64

	// each chunk of the ID becomes one path segment (0-65535)
	chunkSize = 4
	segments  = IDLength / chunkSize
)

// HeaderNames are the accepted spellings of the customer ID column header.
var HeaderNames = []string{
	"Customer ID",
	"customerId",
	"CustomerID",
	"customer_id",
	"customerID",
	"CustomerId",
}

var ErrMissingColumn = errors.New("customer ID column not found")

// IsValid reports whether raw is exactly 64 hexadecimal characters.
func IsValid(raw string) bool {
	if len(raw) != IDLength {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if !isHex(raw[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// DerivationPath maps a valid customer ID to a BIP32 path string.
// The ID is split into 16 chunks of 4 hex chars, each one parsed as a
// 16-bit index. Chunks at even positions are hardened.
//
//	m/<c0>'/<c1>/<c2>'/<c3>/.../<c14>'/<c15>
func DerivationPath(id string) (string, error) {
	if !IsValid(id) {
		return "", InvalidIDError(id)
	}

	var path strings.Builder
	path.Grow(2 + segments*7)
	path.WriteString("m")
	for i := 0; i < segments; i++ {
		chunk := id[i*chunkSize : (i+1)*chunkSize]
		index, err := strconv.ParseUint(chunk, 16, 16)
		if err != nil {
			// unreachable after IsValid
			return "", InvalidIDError(id)
		}
		path.WriteByte('/')
		path.WriteString(strconv.FormatUint(index, 10))
		if i%2 == 0 {
			path.WriteByte('\'')
		}
	}
	return path.String(), nil
}

// IDColumn returns the position of the customer ID column in a header row.
// The first header cell matching one of HeaderNames wins.
func IDColumn(header []string) (int, error) {
	for i, name := range header {
		for _, accepted := range HeaderNames {
			if name == accepted {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: expected one of %q in header %q", ErrMissingColumn, HeaderNames, header)
}
