package handler

import (
	"net/http"
	"time"

	"github.com/GoCCTP/burngate/internal/middleware"
	"github.com/GoCCTP/burngate/internal/model"
	"github.com/GoCCTP/burngate/internal/service"
	"github.com/gin-gonic/gin"
)

type TransferHandler struct {
	svc *service.Facilitator
}

func NewTransferHandler(svc *service.Facilitator) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Transfer handles POST /transfer: burn on the source chain with an explicit
// destination domain and address.
func (h *TransferHandler) Transfer(c *gin.Context) {
	var req model.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	middleware.AddAuditContext(c, "network", req.Network)
	middleware.AddAuditContext(c, "from", req.Signature.From)
	middleware.AddAuditContext(c, "amount", req.Signature.Amount)
	middleware.AddAuditContext(c, "destination_domain", req.DestinationDomain)

	resp, err := h.svc.SubmitTransfer(c.Request.Context(), req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "tx_hash", resp.TxHash)
	middleware.AddAuditContext(c, "burn_nonce", resp.BurnNonce)

	c.JSON(http.StatusOK, resp)
}

// TransferFromNonce handles POST /transfer-from-nonce: the destination is
// packed inside the 32-byte CCTP nonce and extracted by the contract.
func (h *TransferHandler) TransferFromNonce(c *gin.Context) {
	var req model.TransferFromNonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	middleware.AddAuditContext(c, "network", req.Network)
	middleware.AddAuditContext(c, "from", req.Signature.From)
	middleware.AddAuditContext(c, "amount", req.Signature.Amount)

	resp, err := h.svc.SubmitTransferFromNonce(c.Request.Context(), req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "tx_hash", resp.TxHash)
	middleware.AddAuditContext(c, "burn_nonce", resp.BurnNonce)

	c.JSON(http.StatusOK, resp)
}

// ExtractDestination handles GET /extract-destination/:nonce without touching
// the chain.
func (h *TransferHandler) ExtractDestination(c *gin.Context) {
	info, err := h.svc.ExtractDestination(c.Param("nonce"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Health handles GET /health; the network query parameter selects which chain
// to probe, defaulting to the configured default network.
func (h *TransferHandler) Health(c *gin.Context) {
	resp, err := h.svc.Health(c.Request.Context(), c.Query("network"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, model.HealthResponse{
			Status:           "unhealthy",
			NetworkConnected: false,
			Timestamp:        uint64(time.Now().Unix()),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Root serves a plain-text banner so an operator hitting the base URL can tell
// the service apart from a bare reverse proxy.
func (h *TransferHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "burngate",
		"description": "CCTP transfer facilitator: EIP-3009 authorizations in, cross-chain burns out",
		"account":     h.svc.Account().Hex(),
		"endpoints": []string{
			"POST /transfer",
			"POST /transfer-from-nonce",
			"GET /extract-destination/:nonce",
			"GET /health",
			"GET /metrics",
			"GET /ws/events",
		},
	})
}
