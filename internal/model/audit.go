package model

import (
	"time"
)

// AuditLog is one request-scoped audit record. Signature material is
// redacted before it lands here.
type AuditLog struct {
	ID        string `json:"id"` // request ID (UUID)
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context attached by handlers: network, tx hash, decoded
	// destination, error class.
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
