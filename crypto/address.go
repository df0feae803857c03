package crypto

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// EthereumAddress returns the EIP-55 checksummed address of pubkey:
// the last 20 bytes of keccak256 over the uncompressed X||Y coordinates.
func EthereumAddress(pubkey *secp256k1.PublicKey) string {
	uncompressed := pubkey.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	return checksumAddress(digest[12:])
}

func checksumAddress(addr []byte) string {
	lower := []byte(hex.EncodeToString(addr))
	hash := keccak256(lower)

	for i, c := range lower {
		if c < 'a' {
			continue
		}
		nibble := hash[i/2] >> 4
		if i%2 == 1 {
			nibble = hash[i/2] & 0x0f
		}
		if nibble >= 8 {
			lower[i] = c - 32
		}
	}
	return "0x" + string(lower)
}

func keccak256(input []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(input)
	return hash.Sum(nil)
}
