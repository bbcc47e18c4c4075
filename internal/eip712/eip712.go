package eip712

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// EIP712DomainTypeHash is the keccak256 hash of the EIP712Domain type definition.
	// Derived from the signature string on purpose: the upstream facilitator carried
	// two diverging hex literals for these constants and at least one was corrupt.
	// "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// TransferWithAuthorizationTypeHash is the keccak256 hash of the EIP-3009
	// TransferWithAuthorization type definition. Must match the token contract's
	// own TRANSFER_WITH_AUTHORIZATION_TYPEHASH bit-for-bit.
	TransferWithAuthorizationTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))
)

// Authorization mirrors the on-chain TransferWithAuthorization struct. It is
// immutable once constructed: any field change invalidates the signature.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// DomainSeparator computes the EIP-712 domain separator for a verifying
// contract, matching Solidity keccak256(abi.encode(...)) semantics exactly.
func DomainSeparator(name, version string, chainID int64, verifyingContract common.Address) (common.Hash, error) {
	if !utf8.ValidString(name) || !utf8.ValidString(version) {
		return common.Hash{}, fmt.Errorf("domain name/version must be valid UTF-8")
	}

	nameHash := crypto.Keccak256Hash([]byte(name))
	versionHash := crypto.Keccak256Hash([]byte(version))

	// Manual ABI encode: 5 fields, 32 bytes per slot.
	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], nameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	copy(data[96:128], math.U256Bytes(big.NewInt(chainID)))
	copy(data[128+12:160], verifyingContract.Bytes()) // address left-padded to 32 bytes

	return crypto.Keccak256Hash(data), nil
}

// StructHash computes hashStruct(authorization): keccak256 over the typehash
// and the six ABI-encoded fields.
func StructHash(auth *Authorization) common.Hash {
	// typehash + 6 fields = 7 slots * 32 bytes
	data := make([]byte, 32*7)

	copy(data[0:32], TransferWithAuthorizationTypeHash.Bytes())
	copy(data[32+12:64], auth.From.Bytes())
	copy(data[64+12:96], auth.To.Bytes())
	if auth.Value != nil {
		copy(data[96:128], math.U256Bytes(auth.Value))
	}
	if auth.ValidAfter != nil {
		copy(data[128:160], math.U256Bytes(auth.ValidAfter))
	}
	if auth.ValidBefore != nil {
		copy(data[160:192], math.U256Bytes(auth.ValidBefore))
	}
	copy(data[192:224], auth.Nonce[:])

	return crypto.Keccak256Hash(data)
}

// Digest computes the final EIP-712 digest to be signed and independently
// recomputed by the verifying contract:
// keccak256("\x19\x01" || domainSeparator || structHash), 66 bytes before hashing.
func Digest(domainSeparator common.Hash, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}

// AuthorizationDigest is the composed form used by the facilitator for
// diagnostic logging: separator -> struct hash -> digest in one call.
func AuthorizationDigest(name, version string, chainID int64, verifyingContract common.Address, auth *Authorization) (common.Hash, common.Hash, common.Hash, error) {
	sep, err := DomainSeparator(name, version, chainID, verifyingContract)
	if err != nil {
		return common.Hash{}, common.Hash{}, common.Hash{}, err
	}
	sh := StructHash(auth)
	return sep, sh, Digest(sep, sh), nil
}
