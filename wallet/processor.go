package wallet

import (
	"github.com/elnosh/walletgen/crypto"
	"github.com/elnosh/walletgen/customer"
)

// AddressDeriver returns the wallet address at a derivation path.
type AddressDeriver interface {
	DeriveAddress(path string) (string, error)
}

// DeriverFactory builds an independent deriver for one worker.
type DeriverFactory func() (AddressDeriver, error)

// SeedDerivers returns a factory giving every caller its own HD wallet
// over the same seed.
func SeedDerivers(seed *crypto.Seed) DeriverFactory {
	return func() (AddressDeriver, error) {
		hdwallet, err := seed.HDWallet()
		if err != nil {
			return nil, err
		}
		return hdwallet, nil
	}
}

// Processor turns one customer ID into one record.
type Processor struct {
	deriver AddressDeriver
}

func NewProcessor(deriver AddressDeriver) *Processor {
	return &Processor{deriver: deriver}
}

// Process never fails: duplicate, malformed and underivable IDs all
// produce a failure record. The guard is marked before validation so a
// repeated malformed ID is reported as a duplicate.
func (p *Processor) Process(id string, guard *DuplicateGuard) customer.Record {
	if !guard.CheckAndMark(id) {
		return customer.Failure(id, customer.DuplicateIDError())
	}
	return p.derive(id)
}

func (p *Processor) derive(id string) customer.Record {
	path, err := customer.DerivationPath(id)
	if err != nil {
		return customer.Failure(id, customer.InvalidIDError(id))
	}

	address, err := p.deriver.DeriveAddress(path)
	if err != nil {
		return customer.Failure(id, customer.DerivationError(err))
	}
	return customer.Success(id, address)
}
