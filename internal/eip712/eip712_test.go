package eip712

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthorization() *Authorization {
	auth := &Authorization{
		From:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:       big.NewInt(1000000), // 1 USDC
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(1800000000),
	}
	copy(auth.Nonce[:], common.Hex2Bytes("00000006"+"2222222222222222222222222222222222222222"+"0102030405060708"))
	return auth
}

func TestTypeHashes(t *testing.T) {
	// Canonical values from the EIP-712 and EIP-3009 specifications.
	assert.Equal(t,
		"0x8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f",
		EIP712DomainTypeHash.Hex())
	assert.Equal(t,
		"0x7c7c6cdb67a18743f49ec6fa9b35f50d52ed05cbed4cc592e13b44501c1a2267",
		TransferWithAuthorizationTypeHash.Hex())
}

func TestDomainSeparator_KnownVector(t *testing.T) {
	// USDC v2 on Base Sepolia.
	sep, err := DomainSeparator("USDC", "2", 84532,
		common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))
	require.NoError(t, err)
	assert.Equal(t,
		"0x71f17a3b2ff373b803d70a5a07c046c1a2bc8e89c09ef722fcb047abe94c9818",
		sep.Hex())
}

func TestDomainSeparator_SensitiveToAllFields(t *testing.T) {
	verifier := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	base, err := DomainSeparator("USDC", "2", 84532, verifier)
	require.NoError(t, err)

	byName, _ := DomainSeparator("USD Coin", "2", 84532, verifier)
	assert.NotEqual(t, base, byName)

	byVersion, _ := DomainSeparator("USDC", "1", 84532, verifier)
	assert.NotEqual(t, base, byVersion)

	byChain, _ := DomainSeparator("USDC", "2", 8453, verifier)
	assert.NotEqual(t, base, byChain)

	byVerifier, _ := DomainSeparator("USDC", "2", 84532,
		common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"))
	assert.NotEqual(t, base, byVerifier)
}

func TestDomainSeparator_RejectsInvalidUTF8(t *testing.T) {
	_, err := DomainSeparator(string([]byte{0xff, 0xfe}), "2", 84532,
		common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"))
	assert.Error(t, err)
}

func TestStructHash_SensitiveToEveryField(t *testing.T) {
	base := StructHash(testAuthorization())

	mutations := map[string]func(a *Authorization){
		"from":        func(a *Authorization) { a.From = common.HexToAddress("0x3333333333333333333333333333333333333333") },
		"to":          func(a *Authorization) { a.To = common.HexToAddress("0x3333333333333333333333333333333333333333") },
		"value":       func(a *Authorization) { a.Value = big.NewInt(2000000) },
		"validAfter":  func(a *Authorization) { a.ValidAfter = big.NewInt(1) },
		"validBefore": func(a *Authorization) { a.ValidBefore = big.NewInt(1900000000) },
		"nonce":       func(a *Authorization) { a.Nonce[31] ^= 0x01 },
	}

	for field, mutate := range mutations {
		auth := testAuthorization()
		mutate(auth)
		assert.NotEqual(t, base, StructHash(auth), "mutating %s must change the struct hash", field)
	}
}

func TestDigest_MatchesTypedDataMachinery(t *testing.T) {
	verifier := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	auth := testAuthorization()

	_, _, manual, err := AuthorizationDigest("USDC", "2", 84532, verifier, auth)
	require.NoError(t, err)

	generic, err := TypedDataDigest("USDC", "2", 84532, verifier, auth)
	require.NoError(t, err)

	assert.Equal(t, manual, generic)
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	verifier := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	auth := testAuthorization()
	auth.From = crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignAuthorization(key, "USDC", "2", 84532, verifier, auth)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)
	assert.Len(t, sig.Bytes(), 65)

	_, _, digest, err := AuthorizationDigest("USDC", "2", 84532, verifier, auth)
	require.NoError(t, err)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, auth.From, recovered)
}

func BenchmarkAuthorizationDigest(b *testing.B) {
	verifier := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	auth := testAuthorization()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, _ = AuthorizationDigest("USDC", "2", 84532, verifier, auth)
	}
}
