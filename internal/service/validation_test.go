package service

import (
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/GoCCTP/burngate/internal/model"
	"github.com/GoCCTP/burngate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() *model.SignaturePayload {
	return &model.SignaturePayload{
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0x2222222222222222222222222222222222222222",
		Amount:      "1000000",
		ValidAfter:  "0",
		ValidBefore: fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()),
		Nonce:       "0x" + strings.Repeat("ab", 32),
		V:           27,
		R:           "0x" + strings.Repeat("11", 32),
		S:           "0x" + strings.Repeat("22", 32),
	}
}

func TestParseAuthorization_HappyPath(t *testing.T) {
	auth, sig, appErr := parseAuthorization(validPayload())
	require.Nil(t, appErr)

	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), auth.From)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), auth.To)
	assert.Equal(t, big.NewInt(1000000), auth.Value)
	assert.Equal(t, big.NewInt(0), auth.ValidAfter)
	assert.Equal(t, uint8(27), sig.V)
	assert.Equal(t, byte(0xab), auth.Nonce[0])
	assert.Equal(t, byte(0x11), sig.R[0])
	assert.Equal(t, byte(0x22), sig.S[0])
}

func TestParseAuthorization_DefaultsValidAfterToZero(t *testing.T) {
	p := validPayload()
	p.ValidAfter = ""
	auth, _, appErr := parseAuthorization(p)
	require.Nil(t, appErr)
	assert.Zero(t, auth.ValidAfter.Sign())
}

func TestParseAuthorization_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *model.SignaturePayload)
	}{
		{"bad from address", func(p *model.SignaturePayload) { p.From = "not-an-address" }},
		{"bad to address", func(p *model.SignaturePayload) { p.To = "0x123" }},
		{"zero amount", func(p *model.SignaturePayload) { p.Amount = "0" }},
		{"negative amount", func(p *model.SignaturePayload) { p.Amount = "-5" }},
		{"non-numeric amount", func(p *model.SignaturePayload) { p.Amount = "1.5" }},
		{"missing validBefore", func(p *model.SignaturePayload) { p.ValidBefore = "" }},
		{"window inverted", func(p *model.SignaturePayload) {
			p.ValidAfter = p.ValidBefore
		}},
		{"expired", func(p *model.SignaturePayload) {
			p.ValidBefore = fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix())
		}},
		{"short nonce", func(p *model.SignaturePayload) { p.Nonce = "0x" + strings.Repeat("ab", 31) }},
		{"long nonce", func(p *model.SignaturePayload) { p.Nonce = "0x" + strings.Repeat("ab", 33) }},
		{"v too low", func(p *model.SignaturePayload) { p.V = 26 }},
		{"v too high", func(p *model.SignaturePayload) { p.V = 29 }},
		{"short r", func(p *model.SignaturePayload) { p.R = "0x1234" }},
		{"bad s hex", func(p *model.SignaturePayload) { p.S = "0x" + strings.Repeat("zz", 32) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(p)
			auth, _, appErr := parseAuthorization(p)
			require.NotNil(t, appErr, "payload should be rejected")
			assert.Nil(t, auth)
			assert.Equal(t, apperrors.ErrValidation, appErr.Type)
		})
	}
}

func TestParseAuthorization_AcceptsUnprefixedHex(t *testing.T) {
	p := validPayload()
	p.Nonce = strings.Repeat("ab", 32)
	p.R = strings.Repeat("11", 32)
	p.S = strings.Repeat("22", 32)

	_, sig, appErr := parseAuthorization(p)
	require.Nil(t, appErr)
	assert.Equal(t, byte(0x11), sig.R[0])
}

func TestDecodeFixedHex(t *testing.T) {
	raw, err := decodeFixedHex("0xdeadbeef", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, raw)

	_, err = decodeFixedHex("deadbeef", 5)
	assert.Error(t, err)

	_, err = decodeFixedHex("0xgg", 1)
	assert.Error(t, err)
}
