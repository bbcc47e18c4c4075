package nonce

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseAddr = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	packed, err := Encode(6, baseAddr)
	require.NoError(t, err)

	dest, err := Decode(packed[:])
	require.NoError(t, err)

	assert.Equal(t, uint32(6), dest.Domain)
	assert.Equal(t, common.HexToAddress(baseAddr), dest.Address)
	assert.Equal(t, "Base", DomainName(dest.Domain))
}

func TestEncode_AcceptsAddressWithoutPrefix(t *testing.T) {
	packed, err := Encode(3, baseAddr[2:])
	require.NoError(t, err)

	dest, err := Decode(packed[:])
	require.NoError(t, err)
	assert.Equal(t, uint32(3), dest.Domain)
	assert.Equal(t, common.HexToAddress(baseAddr), dest.Address)
}

func TestEncode_SaltIsFresh(t *testing.T) {
	a, err := Encode(0, baseAddr)
	require.NoError(t, err)
	b, err := Encode(0, baseAddr)
	require.NoError(t, err)

	// Domain and address portions match, salts must not.
	assert.Equal(t, a[:24], b[:24])
	assert.NotEqual(t, a[24:], b[24:])
}

func TestEncode_RejectsBadAddressLength(t *testing.T) {
	_, err := Encode(0, baseAddr[:40]) // 19 bytes
	assert.ErrorIs(t, err, ErrInvalidAddressLength)

	_, err = Encode(0, baseAddr+"ff") // 21 bytes
	assert.ErrorIs(t, err, ErrInvalidAddressLength)

	_, err = Encode(0, "0xzz2d35Cc6634C0532925a3b844Bc454e4438f44e")
	assert.ErrorIs(t, err, ErrInvalidAddressLength)
}

func TestDecode_RejectsBadNonceLength(t *testing.T) {
	_, err := Decode(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidNonceLength)

	_, err = Decode(make([]byte, 33))
	assert.ErrorIs(t, err, ErrInvalidNonceLength)
}

func TestDomainName(t *testing.T) {
	assert.Equal(t, "Ethereum", DomainName(0))
	assert.Equal(t, "Avalanche", DomainName(1))
	assert.Equal(t, "Optimism", DomainName(2))
	assert.Equal(t, "Arbitrum", DomainName(3))
	assert.Equal(t, "Base", DomainName(6))
	assert.Equal(t, "Polygon", DomainName(7))
	assert.Equal(t, "Unknown (42)", DomainName(42))
}
