package models

import "audit-chain/merkle"

// AuditAnchor binds an audit event to a position in the chain.
// A pending anchor has no proof yet; BlockIndex is the block it is expected to land in.
type AuditAnchor struct {
	BlockIndex    int64         `json:"block_index"`
	TransactionID string        `json:"transaction_id"`
	MerkleProof   []merkle.Step `json:"merkle_proof"`
	AuditEventID  string        `json:"audit_event_id"`
	AnchoredAt    int64         `json:"anchored_at"` // unix timestamp in ms
	Pending       bool          `json:"pending"`
}
