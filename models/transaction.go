package models

import (
	"encoding/json"

	"audit-chain/hashutil"
)

// TransactionPayload is the audit event a transaction anchors.
type TransactionPayload struct {
	AuditEventID   string          `json:"audit_event_id"`
	AuditEventHash string          `json:"audit_event_hash"`
	Metadata       json.RawMessage `json:"metadata,omitempty"` // compact JSON object
}

// Transaction wraps one anchored audit event. It is immutable once included in a block.
type Transaction struct {
	ID        string             `json:"id"`
	Timestamp int64              `json:"timestamp"` // unix timestamp in ms
	From      string             `json:"from"`
	To        string             `json:"to"`
	Payload   TransactionPayload `json:"payload"`
	Signature string             `json:"signature"`
	Hash      string             `json:"hash"` // H(payload)
}

// CalculateHash hashes the JSON encoding of the payload.
func (t *Transaction) CalculateHash() (string, error) {
	data, err := json.Marshal(t.Payload)
	if err != nil {
		return "", err
	}
	return hashutil.SHA256Hex(data), nil
}
