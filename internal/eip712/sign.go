package eip712

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signature holds the ECDSA components of a signed authorization.
// V is normalized to the Ethereum convention {27, 28}.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// Bytes returns the 65-byte [R || S || V] form.
func (s Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// SignAuthorization signs the EIP-712 digest for an authorization against a
// specific token contract. Used by the inspector CLI and tests; the
// facilitator itself never signs authorizations, only transactions.
func SignAuthorization(key *ecdsa.PrivateKey, name, version string, chainID int64, verifyingContract common.Address, auth *Authorization) (Signature, error) {
	_, _, digest, err := AuthorizationDigest(name, version, chainID, verifyingContract, auth)
	if err != nil {
		return Signature{}, err
	}

	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign digest: %w", err)
	}

	// crypto.Sign returns V as 0/1; verifying contracts expect 27/28.
	var sig Signature
	copy(sig.R[:], raw[0:32])
	copy(sig.S[:], raw[32:64])
	sig.V = raw[64]
	if sig.V < 27 {
		sig.V += 27
	}
	return sig, nil
}

// RecoverSigner recovers the address that produced sig over the given digest.
func RecoverSigner(digest common.Hash, sig Signature) (common.Address, error) {
	raw := sig.Bytes()
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// TypedDataDigest computes the same digest through go-ethereum's generic
// typed-data machinery. Kept as a cross-check against the manual encoder;
// both paths must agree byte-for-byte.
func TypedDataDigest(name, version string, chainID int64, verifyingContract common.Address, auth *Authorization) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("typed data hash failed: %w", err)
	}
	return common.BytesToHash(hash), nil
}
