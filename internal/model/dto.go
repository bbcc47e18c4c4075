package model

// SignaturePayload carries a signed EIP-3009 authorization over the wire.
// Byte-string fields are 0x-prefixed hex; amount and the validity window are
// decimal strings to avoid numeric-precision loss in JSON.
type SignaturePayload struct {
	From        string `json:"from" binding:"required"`
	To          string `json:"to" binding:"required"`
	Amount      string `json:"amount" binding:"required"` // token base units (USDC has 6 decimals)
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore" binding:"required"`
	Nonce       string `json:"nonce" binding:"required"` // 32-byte hex
	V           uint8  `json:"v" binding:"required"`
	R           string `json:"r" binding:"required"` // 32-byte hex
	S           string `json:"s" binding:"required"` // 32-byte hex
}

// TransferRequest asks the facilitator to execute transferAndBurn with
// explicit destination parameters.
type TransferRequest struct {
	Signature          SignaturePayload `json:"signature" binding:"required"`
	DestinationDomain  uint32           `json:"destination_domain"`
	DestinationAddress string           `json:"destination_address" binding:"required"`
	Network            string           `json:"network"`
}

// TransferFromNonceRequest asks for transferAndBurnFromNonce: the contract
// extracts the destination from the CCTP nonce itself.
type TransferFromNonceRequest struct {
	Signature SignaturePayload `json:"signature" binding:"required"`
	Network   string           `json:"network"`
}

type TransferResponse struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"tx_hash"`
	BurnNonce uint64 `json:"burn_nonce"` // best-effort, 0 if no DepositForBurn log matched
	Message   string `json:"message"`
}

// DestinationInfo is the decoded routing metadata of a CCTP nonce.
type DestinationInfo struct {
	DestinationDomain  uint32 `json:"destination_domain"`
	DestinationName    string `json:"destination_name"`
	DestinationAddress string `json:"destination_address"`
	Nonce              string `json:"nonce"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	NetworkConnected bool   `json:"network_connected"`
	LatestBlock      uint64 `json:"latest_block"`
	Timestamp        uint64 `json:"timestamp"`
}
