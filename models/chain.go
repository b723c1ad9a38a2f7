package models

// ChainExport is the portable form of a ledger.
type ChainExport struct {
	Chain               []*Block      `json:"chain"`
	PendingTransactions []Transaction `json:"pending_transactions"`
	LastAnchoredEventID string        `json:"last_anchored_event_id"`
	ExportedAt          int64         `json:"exported_at"` // unix timestamp in ms
}

// Checkpoint records the chain tip after each sealed block
type Checkpoint struct {
	ID        string `json:"id"`
	Height    int64  `json:"height"`
	TipHash   string `json:"tip_hash"`
	Timestamp int64  `json:"timestamp"` // unix timestamp in ms
}

// ChainStats is a summary view of the ledger
type ChainStats struct {
	Height              int64  `json:"height"`
	PendingCount        int    `json:"pending_count"`
	Difficulty          int    `json:"difficulty"`
	LastBlockHash       string `json:"last_block_hash"`
	LastBlockAt         int64  `json:"last_block_at"`
	LastAnchoredEventID string `json:"last_anchored_event_id"`
}
