package middleware

import (
	"encoding/json"
	"testing"
)

func TestRedactAuditBodyTransfer(t *testing.T) {
	body := []byte(`{"network":"sepolia","signature":{"from":"0x1111","amount":"1000000","v":27,"r":"0xaaaa","s":"0xbbbb"}}`)
	out := redactAuditBody("/transfer", body)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	sig, ok := data["signature"].(map[string]interface{})
	if !ok {
		t.Fatalf("signature object missing")
	}
	if sig["v"] == float64(27) || sig["r"] == "0xaaaa" || sig["s"] == "0xbbbb" {
		t.Fatalf("signature components not redacted")
	}
	if sig["from"] != "0x1111" {
		t.Fatalf("non-sensitive field should survive redaction")
	}
	if data["network"] != "sepolia" {
		t.Fatalf("network should survive redaction")
	}
}

func TestRedactAuditBodyTransferFromNonce(t *testing.T) {
	body := []byte(`{"signature":{"sig":"0xdead"}}`)
	out := redactAuditBody("/transfer-from-nonce", body)
	if out == string(body) {
		t.Fatalf("transfer-from-nonce body not redacted")
	}
}

func TestRedactAuditBodyNonSensitivePath(t *testing.T) {
	body := []byte(`{"ok":true}`)
	out := redactAuditBody("/health", body)
	if out != string(body) {
		t.Fatalf("unexpected redaction on non-sensitive path")
	}
}

func TestRedactAuditBodyInvalidJSON(t *testing.T) {
	body := []byte("not-json")
	out := redactAuditBody("/transfer", body)
	if out != "[redacted]" {
		t.Fatalf("expected redacted placeholder for invalid json")
	}
}
