package service

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/GoCCTP/burngate/internal/config"
	"github.com/GoCCTP/burngate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &config.Config{
		Facilitator: config.FacilitatorConfig{
			PrivateKey:     hexutil.Encode(crypto.FromECDSA(key)),
			DefaultNetwork: "sepolia",
			GasLimit:       300000,
		},
		Networks: map[string]config.NetworkConfig{
			"sepolia": {
				RPCURL:       "http://localhost:8545",
				ChainID:      84532,
				CCTPContract: "0x4F26A0466F08BA8Ee601C661C0B2e8d75996a48c",
				USDCContract: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				USDCName:     "USDC",
				USDCVersion:  "2",
			},
			"nocontract": {
				RPCURL:  "http://localhost:8545",
				ChainID: 8453,
			},
		},
	}
}

func TestNewFacilitator(t *testing.T) {
	f, err := NewFacilitator(testConfig(t), nil, nil)
	require.NoError(t, err)
	defer f.Close()

	assert.NotEqual(t, common.Address{}, f.Account())
	assert.Len(t, f.networks, 2)
}

func TestNewFacilitator_RejectsBadKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Facilitator.PrivateKey = ""
	_, err := NewFacilitator(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Facilitator.PrivateKey = "0xnothex"
	_, err = NewFacilitator(cfg, nil, nil)
	assert.Error(t, err)
}

func TestBackendSelection(t *testing.T) {
	f, err := NewFacilitator(testConfig(t), nil, nil)
	require.NoError(t, err)
	defer f.Close()

	be, appErr := f.backend("")
	require.Nil(t, appErr)
	assert.Equal(t, "sepolia", be.name)

	_, appErr = f.backend("unknown")
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrConfig, appErr.Type)

	// Configured network without a deployed contract cannot accept transfers.
	_, appErr = f.backend("nocontract")
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrConfig, appErr.Type)
}

func TestContractABI_Selectors(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(cctpContractABI))
	require.NoError(t, err)

	for _, name := range []string{"transferAndBurn", "transferAndBurnFromNonce", "extractDestinationFromNonce"} {
		m, ok := parsed.Methods[name]
		require.True(t, ok, "missing method %s", name)
		assert.Len(t, m.ID, 4)
	}

	var nonce, r, s [32]byte
	calldata, err := parsed.Pack("transferAndBurnFromNonce",
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		big.NewInt(1000000), big.NewInt(0), big.NewInt(1800000000),
		nonce, uint8(27), r, s)
	require.NoError(t, err)
	// 4-byte selector + 8 static args.
	assert.Len(t, calldata, 4+8*32)
	assert.Equal(t, []byte(parsed.Methods["transferAndBurnFromNonce"].ID), calldata[:4])
}

func TestExtractDestination(t *testing.T) {
	f, err := NewFacilitator(testConfig(t), nil, nil)
	require.NoError(t, err)
	defer f.Close()

	nonceHex := "0x00000006" + "742d35cc6634c0532925a3b844bc454e4438f44e" + "0102030405060708"
	info, err := f.ExtractDestination(nonceHex)
	require.NoError(t, err)

	assert.Equal(t, uint32(6), info.DestinationDomain)
	assert.Equal(t, "Base", info.DestinationName)
	assert.Equal(t, common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e").Hex(), info.DestinationAddress)
	assert.Equal(t, nonceHex, info.Nonce)

	_, err = f.ExtractDestination("0x1234")
	require.Error(t, err)
}

func TestInterpretReceipt_Reverted(t *testing.T) {
	txHash := common.HexToHash("0xabc1")
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed}

	_, appErr := interpretReceipt(receipt, txHash, "https://sepolia.basescan.org")
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrReverted, appErr.Type)
	assert.Equal(t, txHash.Hex(), appErr.TxHash)
	assert.Contains(t, appErr.Message, txHash.Hex())
	assert.Contains(t, appErr.Suggestion, "basescan.org")
}

func TestInterpretReceipt_Success(t *testing.T) {
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{
				Topics: []common.Hash{
					depositForBurnTopic,
					common.BigToHash(big.NewInt(987654)),
				},
			},
		},
	}

	burnNonce, appErr := interpretReceipt(receipt, common.Hash{}, "")
	require.Nil(t, appErr)
	assert.Equal(t, uint64(987654), burnNonce)
}

func TestParseBurnNonce(t *testing.T) {
	// No matching event: best-effort zero.
	empty := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	assert.Zero(t, parseBurnNonce(empty))

	unrelated := &types.Receipt{
		Logs: []*types.Log{
			{Topics: []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}},
			nil,
			{Topics: []common.Hash{depositForBurnTopic}}, // missing indexed nonce
		},
	}
	assert.Zero(t, parseBurnNonce(unrelated))

	mixed := &types.Receipt{
		Logs: []*types.Log{
			{Topics: []common.Hash{common.HexToHash("0x01")}},
			{Topics: []common.Hash{depositForBurnTopic, common.BigToHash(big.NewInt(42))}},
		},
	}
	assert.Equal(t, uint64(42), parseBurnNonce(mixed))
}

func TestReceiptTimeout(t *testing.T) {
	// No expiry: configured value wins, zero falls back to the default.
	assert.Equal(t, 30*time.Second, receiptTimeout(30*time.Second, nil))
	assert.Equal(t, 90*time.Second, receiptTimeout(0, nil))

	// Expiry far beyond the configured window: no shrink.
	farOut := big.NewInt(time.Now().Add(time.Hour).Unix())
	assert.Equal(t, 30*time.Second, receiptTimeout(30*time.Second, farOut))

	// Expiry inside the window: the poll deadline shrinks to it.
	soon := big.NewInt(time.Now().Add(20 * time.Second).Unix())
	got := receiptTimeout(90*time.Second, soon)
	assert.LessOrEqual(t, got, 20*time.Second)
	assert.Greater(t, got, 15*time.Second)

	// Expiry imminent or already past: clamped to the floor, never the full
	// configured window.
	imminent := big.NewInt(time.Now().Add(2 * time.Second).Unix())
	assert.Equal(t, minReceiptWait, receiptTimeout(90*time.Second, imminent))

	expired := big.NewInt(time.Now().Add(-time.Minute).Unix())
	assert.Equal(t, minReceiptWait, receiptTimeout(90*time.Second, expired))
}

func TestCheckLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Facilitator.MaxTransferUSDC = 100
	cfg.Facilitator.MaxDailyUSDC = 150

	usage := NewMemUsageStore()
	f, err := NewFacilitator(cfg, usage, nil)
	require.NoError(t, err)
	defer f.Close()

	be := f.networks["sepolia"]
	ctx := context.Background()

	// 50 USDC in base units: under both caps.
	assert.Nil(t, f.checkLimits(ctx, be, big.NewInt(50_000_000)))

	// 101 USDC: over the per-transfer cap.
	appErr := f.checkLimits(ctx, be, big.NewInt(101_000_000))
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrValidation, appErr.Type)

	// 120 already spent today + 40 more: over the daily cap.
	require.NoError(t, usage.AddDailyUsage(ctx, "sepolia", 1, 120))
	appErr = f.checkLimits(ctx, be, big.NewInt(40_000_000))
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrValidation, appErr.Type)
	assert.Contains(t, appErr.Message, "daily volume")
}

func TestIsNonceError(t *testing.T) {
	assert.False(t, isNonceError(nil))
	assert.False(t, isNonceError(assert.AnError))
	assert.True(t, isNonceError(errNonceTooLow))
	assert.True(t, isNonceError(errReplacement))
}

var (
	errNonceTooLow = errString("nonce too low")
	errReplacement = errString("replacement transaction underpriced")
)

type errString string

func (e errString) Error() string { return string(e) }
