package service

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/GoCCTP/burngate/internal/eip712"
	"github.com/GoCCTP/burngate/internal/model"
	"github.com/GoCCTP/burngate/internal/pkg/apperrors"
	"github.com/GoCCTP/burngate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// parseAuthorization structurally validates a wire payload and builds the
// immutable authorization plus signature. Every rejection happens here,
// before any chain interaction, so no gas is ever spent on malformed input.
func parseAuthorization(payload *model.SignaturePayload) (*eip712.Authorization, eip712.Signature, *apperrors.AppError) {
	var sig eip712.Signature

	reject := func(reason, msg string) (*eip712.Authorization, eip712.Signature, *apperrors.AppError) {
		metrics.ValidationRejects.WithLabelValues(reason).Inc()
		return nil, eip712.Signature{}, apperrors.NewValidation(msg)
	}

	if !common.IsHexAddress(payload.From) {
		return reject("bad_from", fmt.Sprintf("invalid from address: %q", payload.From))
	}
	if !common.IsHexAddress(payload.To) {
		return reject("bad_to", fmt.Sprintf("invalid to address: %q", payload.To))
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(payload.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return reject("bad_amount", fmt.Sprintf("amount must be a positive decimal integer, got %q", payload.Amount))
	}

	validAfter, err := parseUnixSeconds(payload.ValidAfter, big.NewInt(0))
	if err != nil {
		return reject("bad_valid_after", fmt.Sprintf("invalid validAfter: %v", err))
	}
	validBefore, err := parseUnixSeconds(payload.ValidBefore, nil)
	if err != nil {
		return reject("bad_valid_before", fmt.Sprintf("invalid validBefore: %v", err))
	}
	if validAfter.Cmp(validBefore) >= 0 {
		return reject("window_order", fmt.Sprintf("validAfter %s must be before validBefore %s", validAfter, validBefore))
	}
	// Expired authorizations are guaranteed to revert: reject locally instead
	// of burning gas to learn it from the contract.
	if now := big.NewInt(time.Now().Unix()); validBefore.Cmp(now) <= 0 {
		return reject("expired", fmt.Sprintf("authorization expired: validBefore %s is in the past", validBefore))
	}

	nonceBytes, err := decodeFixedHex(payload.Nonce, 32)
	if err != nil {
		return reject("bad_nonce", fmt.Sprintf("invalid nonce (%v); expected 32 bytes of hex: %q", err, payload.Nonce))
	}

	if payload.V != 27 && payload.V != 28 {
		return reject("bad_v", fmt.Sprintf("v must be 27 or 28, got %d", payload.V))
	}
	rBytes, err := decodeFixedHex(payload.R, 32)
	if err != nil {
		return reject("bad_r", fmt.Sprintf("invalid r (%v): %q", err, payload.R))
	}
	sBytes, err := decodeFixedHex(payload.S, 32)
	if err != nil {
		return reject("bad_s", fmt.Sprintf("invalid s (%v): %q", err, payload.S))
	}

	auth := &eip712.Authorization{
		From:        common.HexToAddress(payload.From),
		To:          common.HexToAddress(payload.To),
		Value:       amount,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
	}
	copy(auth.Nonce[:], nonceBytes)

	sig.V = payload.V
	copy(sig.R[:], rBytes)
	copy(sig.S[:], sBytes)

	return auth, sig, nil
}

func parseUnixSeconds(s string, fallback *big.Int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if fallback != nil {
			return fallback, nil
		}
		return nil, fmt.Errorf("value is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative decimal integer: %q", s)
	}
	return v, nil
}

// decodeFixedHex decodes a hex field with or without 0x prefix and enforces
// an exact byte length.
func decodeFixedHex(s string, want int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d", want, len(raw))
	}
	return raw, nil
}
