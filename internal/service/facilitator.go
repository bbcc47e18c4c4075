package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/GoCCTP/burngate/internal/chain"
	"github.com/GoCCTP/burngate/internal/config"
	"github.com/GoCCTP/burngate/internal/eip712"
	"github.com/GoCCTP/burngate/internal/manager"
	"github.com/GoCCTP/burngate/internal/model"
	"github.com/GoCCTP/burngate/internal/nonce"
	"github.com/GoCCTP/burngate/internal/pkg/apperrors"
	"github.com/GoCCTP/burngate/internal/pkg/logger"
	"github.com/GoCCTP/burngate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// cctpContractABI covers the three entry points of the burn-and-bridge
// contract. transferAndBurn takes the destination explicitly;
// transferAndBurnFromNonce extracts it from the CCTP nonce on-chain.
const cctpContractABI = `[
	{"name":"transferAndBurn","type":"function","inputs":[
		{"name":"from","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"validAfter","type":"uint256"},
		{"name":"validBefore","type":"uint256"},
		{"name":"nonce","type":"bytes32"},
		{"name":"destinationDomain","type":"uint32"},
		{"name":"destinationAddress","type":"bytes32"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}],
	"outputs":[{"name":"","type":"uint64"}]},
	{"name":"transferAndBurnFromNonce","type":"function","inputs":[
		{"name":"from","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"validAfter","type":"uint256"},
		{"name":"validBefore","type":"uint256"},
		{"name":"nonce","type":"bytes32"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}],
	"outputs":[{"name":"","type":"uint64"}]},
	{"name":"extractDestinationFromNonce","type":"function","stateMutability":"view","inputs":[
		{"name":"nonce","type":"bytes32"}],
	"outputs":[
		{"name":"destinationDomain","type":"uint32"},
		{"name":"destinationAddress","type":"bytes32"}]}
]`

// depositForBurnTopic identifies the CCTP DepositForBurn event; its first
// indexed argument is the uint64 burn nonce.
var depositForBurnTopic = crypto.Keccak256Hash([]byte("DepositForBurn(uint64,address,uint256,address,bytes32,uint32,bytes32,bytes32)"))

// UsageRepo tracks best-effort daily transfer volume per network.
type UsageRepo interface {
	GetDailyUsage(ctx context.Context, network string) (int, float64, error)
	AddDailyUsage(ctx context.Context, network string, transfers int, amountUSDC float64) error
}

// EventPublisher receives transfer lifecycle notifications.
type EventPublisher interface {
	Publish(eventType, network, txHash, message string)
}

type networkBackend struct {
	name     string
	cfg      config.NetworkConfig
	client   *chain.Client
	contract common.Address
	nonces   *manager.NonceManager
}

// Facilitator drives a signed EIP-3009 authorization through the
// burn-and-bridge contract: validate, submit, confirm.
//
// All transactions are signed by one account, so its nonce-space is
// serialized by submitMu across nonce assignment, signing and broadcast.
type Facilitator struct {
	cfg      *config.Config
	networks map[string]*networkBackend
	key      *ecdsa.PrivateKey
	account  common.Address
	abi      abi.ABI
	usage    UsageRepo
	events   EventPublisher

	submitMu sync.Mutex
}

func NewFacilitator(cfg *config.Config, usage UsageRepo, events EventPublisher) (*Facilitator, error) {
	parsedABI, err := abi.JSON(strings.NewReader(cctpContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.Facilitator.PrivateKey), "0x")
	if keyHex == "" {
		return nil, apperrors.NewConfig("facilitator private key is not set")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, apperrors.NewConfig(fmt.Sprintf("invalid facilitator private key: %v", err))
	}

	f := &Facilitator{
		cfg:      cfg,
		networks: make(map[string]*networkBackend),
		key:      key,
		account:  crypto.PubkeyToAddress(key.PublicKey),
		abi:      parsedABI,
		usage:    usage,
		events:   events,
	}

	for name, netCfg := range cfg.Networks {
		client := chain.NewClient(netCfg.RPCURL, netCfg.ChainID)
		f.networks[name] = &networkBackend{
			name:     name,
			cfg:      netCfg,
			client:   client,
			contract: common.HexToAddress(netCfg.CCTPContract),
			nonces:   manager.NewNonceManager(client),
		}
	}

	logger.Info("Facilitator initialized", "account", f.account.Hex(), "networks", len(f.networks))
	return f, nil
}

// Account returns the facilitator's signing address.
func (f *Facilitator) Account() common.Address {
	return f.account
}

// Close releases all network connections.
func (f *Facilitator) Close() {
	for _, be := range f.networks {
		be.client.Close()
	}
}

func (f *Facilitator) backend(network string) (*networkBackend, *apperrors.AppError) {
	if network == "" {
		network = f.cfg.Facilitator.DefaultNetwork
	}
	be, ok := f.networks[network]
	if !ok {
		return nil, apperrors.NewConfig(fmt.Sprintf("unsupported network: %q", network))
	}
	if be.cfg.CCTPContract == "" {
		return nil, apperrors.NewConfig(fmt.Sprintf("network %q has no CCTP contract configured", network))
	}
	return be, nil
}

// SubmitTransfer executes transferAndBurn with explicit destination
// parameters.
func (f *Facilitator) SubmitTransfer(ctx context.Context, req model.TransferRequest) (*model.TransferResponse, error) {
	be, cfgErr := f.backend(req.Network)
	if cfgErr != nil {
		return nil, cfgErr
	}

	auth, sig, valErr := parseAuthorization(&req.Signature)
	if valErr != nil {
		metrics.TransfersTotal.WithLabelValues("rejected", be.name).Inc()
		return nil, valErr
	}

	destBytes, err := decodeFixedHex(req.DestinationAddress, common.AddressLength)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("rejected", be.name).Inc()
		metrics.ValidationRejects.WithLabelValues("bad_destination").Inc()
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid destination address (%v): %q", err, req.DestinationAddress))
	}
	// The contract expects the 20-byte address left-aligned in a bytes32.
	var destSlot [32]byte
	copy(destSlot[:common.AddressLength], destBytes)

	if limitErr := f.checkLimits(ctx, be, auth.Value); limitErr != nil {
		metrics.TransfersTotal.WithLabelValues("rejected", be.name).Inc()
		return nil, limitErr
	}

	f.logDigestDiagnostics(be, auth)

	calldata, err := f.abi.Pack("transferAndBurn",
		auth.From, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce,
		req.DestinationDomain, destSlot, sig.V, sig.R, sig.S)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to pack calldata: %w", err))
	}

	return f.execute(ctx, be, auth, calldata)
}

// SubmitTransferFromNonce executes transferAndBurnFromNonce; the contract
// derives the destination from the CCTP nonce via its own decoder.
func (f *Facilitator) SubmitTransferFromNonce(ctx context.Context, req model.TransferFromNonceRequest) (*model.TransferResponse, error) {
	be, cfgErr := f.backend(req.Network)
	if cfgErr != nil {
		return nil, cfgErr
	}

	auth, sig, valErr := parseAuthorization(&req.Signature)
	if valErr != nil {
		metrics.TransfersTotal.WithLabelValues("rejected", be.name).Inc()
		return nil, valErr
	}

	// Decoding locally mirrors what the contract will extract; surfacing it in
	// logs is the fastest way to spot a mis-encoded nonce.
	if dest, err := nonce.Decode(auth.Nonce[:]); err == nil {
		logger.Info("Transfer from nonce",
			"destination_domain", dest.Domain,
			"destination_name", nonce.DomainName(dest.Domain),
			"destination_address", dest.Address.Hex())
	}

	if limitErr := f.checkLimits(ctx, be, auth.Value); limitErr != nil {
		metrics.TransfersTotal.WithLabelValues("rejected", be.name).Inc()
		return nil, limitErr
	}

	f.logDigestDiagnostics(be, auth)

	calldata, err := f.abi.Pack("transferAndBurnFromNonce",
		auth.From, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce,
		sig.V, sig.R, sig.S)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to pack calldata: %w", err))
	}

	return f.execute(ctx, be, auth, calldata)
}

// ExtractDestination decodes a CCTP nonce locally. Byte-identical to the
// contract's extractDestinationFromNonce without the RPC round trip.
func (f *Facilitator) ExtractDestination(nonceHex string) (*model.DestinationInfo, error) {
	raw, err := decodeFixedHex(nonceHex, nonce.Size)
	if err != nil {
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid nonce (%v): %q", err, nonceHex))
	}
	dest, err := nonce.Decode(raw)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	return &model.DestinationInfo{
		DestinationDomain:  dest.Domain,
		DestinationName:    nonce.DomainName(dest.Domain),
		DestinationAddress: dest.Address.Hex(),
		Nonce:              "0x" + common.Bytes2Hex(raw),
	}, nil
}

// Health reports liveness against the requested network's chain head.
func (f *Facilitator) Health(ctx context.Context, network string) (*model.HealthResponse, error) {
	if network == "" {
		network = f.cfg.Facilitator.DefaultNetwork
	}
	be, ok := f.networks[network]
	if !ok {
		return nil, apperrors.NewConfig(fmt.Sprintf("unsupported network: %q", network))
	}
	snap, err := be.client.Head(ctx)
	if err != nil {
		return nil, apperrors.NewNetwork("failed to reach chain head", err)
	}
	return &model.HealthResponse{
		Status:           "healthy",
		NetworkConnected: true,
		LatestBlock:      snap.BlockNumber,
		Timestamp:        snap.Timestamp,
	}, nil
}

// checkLimits enforces the per-transfer and daily USDC caps. Base units are
// shifted by the token's 6 decimals before comparison.
func (f *Facilitator) checkLimits(ctx context.Context, be *networkBackend, amount *big.Int) *apperrors.AppError {
	maxSingle := f.cfg.Facilitator.MaxTransferUSDC
	maxDaily := f.cfg.Facilitator.MaxDailyUSDC
	if maxSingle <= 0 && maxDaily <= 0 {
		return nil
	}

	usdc := decimal.NewFromBigInt(amount, -6)

	if maxSingle > 0 && usdc.GreaterThan(decimal.NewFromFloat(maxSingle)) {
		metrics.ValidationRejects.WithLabelValues("max_transfer").Inc()
		return apperrors.NewValidation(fmt.Sprintf("transfer of %s USDC exceeds per-transfer limit %.2f", usdc, maxSingle))
	}

	if maxDaily > 0 && f.usage != nil {
		_, vol, err := f.usage.GetDailyUsage(ctx, be.name)
		if err != nil {
			// Usage tracking is best-effort; a broken counter must not block transfers.
			logger.Warn("daily usage lookup failed", "network", be.name, "error", err)
			return nil
		}
		if total := decimal.NewFromFloat(vol).Add(usdc); total.GreaterThan(decimal.NewFromFloat(maxDaily)) {
			metrics.ValidationRejects.WithLabelValues("daily_volume").Inc()
			return apperrors.NewValidation(fmt.Sprintf("daily volume limit exceeded (current %.2f + %s > %.2f USDC)", vol, usdc, maxDaily))
		}
	}
	return nil
}

// logDigestDiagnostics recomputes the EIP-712 digest the token contract will
// verify. The facilitator does not re-check the signature itself, but a
// mismatching digest is the single most common integration failure, and the
// contract reverts with no detail beyond "invalid signature".
func (f *Facilitator) logDigestDiagnostics(be *networkBackend, auth *eip712.Authorization) {
	if be.cfg.USDCContract == "" {
		return
	}
	sep, structHash, digest, err := eip712.AuthorizationDigest(
		be.cfg.USDCName, be.cfg.USDCVersion, be.cfg.ChainID,
		common.HexToAddress(be.cfg.USDCContract), auth)
	if err != nil {
		logger.Warn("digest diagnostics failed", "error", err)
		return
	}
	logger.Debug("authorization digest",
		"network", be.name,
		"from", auth.From.Hex(),
		"domain_separator", sep.Hex(),
		"struct_hash", structHash.Hex(),
		"digest", digest.Hex())
}

func (f *Facilitator) publish(eventType, network, txHash, message string) {
	if f.events != nil {
		f.events.Publish(eventType, network, txHash, message)
	}
}

// execute broadcasts the packed call and waits for its receipt.
func (f *Facilitator) execute(ctx context.Context, be *networkBackend, auth *eip712.Authorization, calldata []byte) (*model.TransferResponse, error) {
	tx, err := f.broadcast(ctx, be, calldata)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("network_error", be.name).Inc()
		f.publish("failed", be.name, "", err.Error())
		return nil, err
	}
	txHash := tx.Hash()
	txLog := logger.Tx(be.name, txHash.Hex())
	f.publish("submitted", be.name, txHash.Hex(), "transaction broadcast")
	txLog.Info("Transaction broadcast", "amount", auth.Value.String())

	receipt, waitErr := f.waitForReceipt(ctx, be, txHash, auth.ValidBefore)
	if waitErr != nil {
		metrics.TransfersTotal.WithLabelValues("network_error", be.name).Inc()
		f.publish("failed", be.name, txHash.Hex(), waitErr.Error())
		return nil, waitErr
	}

	burnNonce, revertErr := interpretReceipt(receipt, txHash, be.cfg.ExplorerURL)
	if revertErr != nil {
		metrics.TransfersTotal.WithLabelValues("reverted", be.name).Inc()
		f.publish("failed", be.name, txHash.Hex(), revertErr.Error())
		return nil, revertErr
	}

	metrics.TransfersTotal.WithLabelValues("confirmed", be.name).Inc()
	f.publish("confirmed", be.name, txHash.Hex(), "transfer completed")
	txLog.Info("Transfer successful", "burn_nonce", burnNonce)

	if f.usage != nil {
		usdc, _ := decimal.NewFromBigInt(auth.Value, -6).Float64()
		if err := f.usage.AddDailyUsage(ctx, be.name, 1, usdc); err != nil {
			logger.Warn("failed to record daily usage", "network", be.name, "error", err)
		}
	}

	return &model.TransferResponse{
		Success:   true,
		TxHash:    txHash.Hex(),
		BurnNonce: burnNonce,
		Message:   "Transfer completed successfully",
	}, nil
}

// broadcast assigns an account nonce, signs and sends the transaction.
// submitMu makes nonce assignment and broadcast atomic with respect to other
// submissions from the same signing account.
func (f *Facilitator) broadcast(ctx context.Context, be *networkBackend, calldata []byte) (*types.Transaction, error) {
	submitTimeout := time.Duration(f.cfg.Facilitator.SubmitTimeoutSeconds) * time.Second
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	f.submitMu.Lock()
	defer f.submitMu.Unlock()

	accountNonce, err := be.nonces.Next(ctx, f.account)
	if err != nil {
		return nil, apperrors.NewNetwork("failed to fetch account nonce", err)
	}

	gasPrice, err := be.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperrors.NewNetwork("failed to fetch gas price", err)
	}

	gasLimit, err := be.client.EstimateGas(ctx, ethereum.CallMsg{
		From: f.account,
		To:   &be.contract,
		Data: calldata,
	})
	if err != nil {
		// Estimation can fail for transient RPC reasons; fall back to the fixed
		// cap and let the chain produce the authoritative verdict.
		gasLimit = f.cfg.Facilitator.GasLimit
		if gasLimit == 0 {
			gasLimit = 300000
		}
		logger.Warn("gas estimation failed, using fallback", "gas_limit", gasLimit, "error", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    accountNonce,
		To:       &be.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(be.client.ChainID()), f.key)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to sign transaction: %w", err))
	}

	if err := be.client.SendTransaction(ctx, signedTx); err != nil {
		if isNonceError(err) {
			_ = be.nonces.Reset(ctx, f.account)
		}
		return nil, apperrors.NewNetwork("failed to broadcast transaction", err)
	}

	be.nonces.Increment(f.account)
	return signedTx, nil
}

// minReceiptWait is the floor for the receipt-poll window. Even an
// authorization on the edge of expiry gets a couple of poll rounds, since the
// transaction may already be mined.
const minReceiptWait = 5 * time.Second

// receiptTimeout bounds the poll window by the authorization's expiry.
// Polling past validBefore is pointless because an unmined transfer reverts
// once the window closes.
func receiptTimeout(configured time.Duration, validBefore *big.Int) time.Duration {
	timeout := configured
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if validBefore != nil && validBefore.IsInt64() {
		if untilExpiry := time.Until(time.Unix(validBefore.Int64(), 0)); untilExpiry < timeout {
			if untilExpiry < minReceiptWait {
				untilExpiry = minReceiptWait
			}
			timeout = untilExpiry
		}
	}
	return timeout
}

func (f *Facilitator) waitForReceipt(ctx context.Context, be *networkBackend, txHash common.Hash, validBefore *big.Int) (*types.Receipt, error) {
	timeout := receiptTimeout(time.Duration(f.cfg.Facilitator.ReceiptTimeoutSeconds)*time.Second, validBefore)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poll := time.Duration(f.cfg.Facilitator.ReceiptPollMillis) * time.Millisecond
	receipt, err := be.client.WaitForReceipt(ctx, txHash, poll)
	if err != nil {
		appErr := apperrors.NewNetwork(fmt.Sprintf("no receipt for %s before deadline; outcome unknown", txHash.Hex()), err)
		appErr.TxHash = txHash.Hex()
		return nil, appErr
	}
	return receipt, nil
}

// interpretReceipt maps a mined receipt to the transfer outcome. Status 0 is
// the chain's authoritative rejection: expired window, reused nonce, digest
// mismatch or insufficient balance all land here.
func interpretReceipt(receipt *types.Receipt, txHash common.Hash, explorerURL string) (uint64, *apperrors.AppError) {
	if receipt.Status == types.ReceiptStatusFailed {
		msg := fmt.Sprintf("transaction reverted on-chain. TX: %s", txHash.Hex())
		appErr := apperrors.NewReverted(msg, txHash.Hex())
		if explorerURL != "" {
			appErr.Suggestion = fmt.Sprintf("Inspect %s/tx/%s. Do not resubmit the same signed authorization.", explorerURL, txHash.Hex())
		}
		return 0, appErr
	}
	return parseBurnNonce(receipt), nil
}

// parseBurnNonce extracts the burn identifier from the DepositForBurn event.
// Best-effort: 0 when no log matches.
func parseBurnNonce(receipt *types.Receipt) uint64 {
	for _, lg := range receipt.Logs {
		if lg == nil || len(lg.Topics) < 2 {
			continue
		}
		if lg.Topics[0] == depositForBurnTopic {
			return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()
		}
	}
	return 0
}

func isNonceError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "replacement transaction underpriced")
}
