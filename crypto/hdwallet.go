package crypto

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

const redacted = "[REDACTED]"

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// Seed is the BIP39 seed of the master mnemonic. It is shared read-only
// between workers; each worker builds its own HDWallet from it.
type Seed struct {
	seed []byte
}

// NewSeed validates the mnemonic checksum and derives the BIP39 seed with
// an empty passphrase.
func NewSeed(mnemonic string) (*Seed, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: empty phrase", ErrInvalidMnemonic)
	}

	seed, err := bip39.NewSeedWithErrorChecking(normalized, "")
	if err != nil {
		// err can carry words from the phrase, do not wrap it
		return nil, ErrInvalidMnemonic
	}
	return &Seed{seed: seed}, nil
}

func (s *Seed) String() string {
	return redacted
}

func (s *Seed) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// HDWallet returns a wallet with its own master key. The master key memoizes
// its public key on first use, so an HDWallet must not be shared between
// goroutines.
func (s *Seed) HDWallet() (*HDWallet, error) {
	master, err := hdkeychain.NewMaster(s.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("hdkeychain.NewMaster: %v", err)
	}
	return &HDWallet{master: master}, nil
}

type HDWallet struct {
	master *hdkeychain.ExtendedKey
}

// DeriveAddress derives the key at path from the master key and
// returns its checksummed Ethereum address.
func (w *HDWallet) DeriveAddress(path string) (string, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return "", err
	}

	key := w.master
	for _, index := range indexes {
		key, err = key.Derive(index)
		if err != nil {
			return "", fmt.Errorf("error deriving child %v: %v", index, err)
		}
	}

	pubkey, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	return EthereumAddress(pubkey), nil
}

// ParsePath parses a path like m/44'/60'/0'/0/0 into child indexes.
// Hardened segments are marked with ' or h.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath, path)
	}

	indexes := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		var offset uint32
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			offset = hdkeychain.HardenedKeyStart
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil || index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad segment %q in %q", ErrInvalidPath, part, path)
		}
		indexes = append(indexes, uint32(index)+offset)
	}
	return indexes, nil
}
