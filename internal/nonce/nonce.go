// Package nonce implements the structured 32-byte nonce used to multiplex
// CCTP routing metadata into the EIP-3009 nonce field.
//
// Layout: bytes[0:4] destination domain (big-endian uint32),
// bytes[4:24] destination address, bytes[24:32] random salt.
package nonce

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// Size is the total nonce length in bytes.
	Size = 32

	domainOffset  = 0
	addressOffset = 4
	saltOffset    = 24
)

var (
	ErrInvalidAddressLength = fmt.Errorf("invalid destination address length: expected 20 bytes")
	ErrInvalidNonceLength   = fmt.Errorf("invalid nonce length: expected %d bytes", Size)
)

// Destination is the routing information recovered from a nonce.
type Destination struct {
	Domain  uint32
	Address common.Address
	Salt    [8]byte
}

// Encode packs a destination domain and address with 8 bytes of fresh
// cryptographic randomness. The salt is the only anti-replay protection the
// nonce carries: two authorizations with the same (from, nonce) pair are
// rejected as duplicates by the token contract.
func Encode(destinationDomain uint32, destinationAddress string) ([Size]byte, error) {
	var out [Size]byte

	addrHex := strings.TrimPrefix(destinationAddress, "0x")
	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidAddressLength, err)
	}
	if len(raw) != common.AddressLength {
		return out, fmt.Errorf("%w, got %d", ErrInvalidAddressLength, len(raw))
	}

	binary.BigEndian.PutUint32(out[domainOffset:addressOffset], destinationDomain)
	copy(out[addressOffset:saltOffset], raw)
	if _, err := rand.Read(out[saltOffset:]); err != nil {
		return out, fmt.Errorf("failed to generate salt: %w", err)
	}
	return out, nil
}

// Decode splits a nonce back into its routing fields. Lossless for domain and
// address; unknown domains are preserved, not rejected.
func Decode(b []byte) (Destination, error) {
	if len(b) != Size {
		return Destination{}, fmt.Errorf("%w, got %d", ErrInvalidNonceLength, len(b))
	}

	var dest Destination
	dest.Domain = binary.BigEndian.Uint32(b[domainOffset:addressOffset])
	dest.Address = common.BytesToAddress(b[addressOffset:saltOffset])
	copy(dest.Salt[:], b[saltOffset:])
	return dest, nil
}

// cctpDomains maps the small CCTP domain enumeration to network names for
// logging. Unrecognized identifiers format as "Unknown (<id>)".
var cctpDomains = map[uint32]string{
	0: "Ethereum",
	1: "Avalanche",
	2: "Optimism",
	3: "Arbitrum",
	6: "Base",
	7: "Polygon",
}

// DomainName returns the human-readable network name for a CCTP domain id.
func DomainName(id uint32) string {
	if name, ok := cctpDomains[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", id)
}
