package customer

import (
	"fmt"
	"strings"
)

type ErrCode int

const (
	InvalidIDErrCode  ErrCode = 1001
	DuplicateErrCode  ErrCode = 1002
	DerivationErrCode ErrCode = 1003
)

// Error is the reason attached to a failed record.
type Error struct {
	Detail string  `json:"detail"`
	Code   ErrCode `json:"code"`
}

func BuildError(detail string, code ErrCode) *Error {
	return &Error{Detail: detail, Code: code}
}

func (e Error) Error() string {
	return e.Detail
}

// longer IDs are cut in failure reasons
const maxEchoedID = 70

func DuplicateIDError() *Error {
	return BuildError("Duplicated Customer ID", DuplicateErrCode)
}

func InvalidIDError(id string) *Error {
	if len(id) > maxEchoedID {
		id = strings.ToValidUTF8(id[:maxEchoedID], "") + "…"
	}
	return BuildError(fmt.Sprintf("customer ID '%v' is not valid: expected %d hexadecimal characters", id, IDLength), InvalidIDErrCode)
}

func DerivationError(err error) *Error {
	return BuildError(fmt.Sprintf("could not derive wallet address: %v", err), DerivationErrCode)
}

// Record is the outcome for a single customer ID. Exactly one of
// Address and Err is set.
type Record struct {
	CustomerID string
	Address    string
	Err        *Error
}

func Success(id, address string) Record {
	return Record{CustomerID: id, Address: address}
}

func Failure(id string, err *Error) Record {
	return Record{CustomerID: id, Err: err}
}

func (r Record) Failed() bool {
	return r.Err != nil
}

// Reason returns the failure detail or an empty string on success.
func (r Record) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Detail
}
