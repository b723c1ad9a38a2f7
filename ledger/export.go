package ledger

import (
	"encoding/json"
	"fmt"

	"audit-chain/logger"
	"audit-chain/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Export serializes the chain, the pending pool and the last anchored event id.
func (l *Ledger) Export() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := l.pending
	if pending == nil {
		pending = []models.Transaction{}
	}
	return json.Marshal(models.ChainExport{
		Chain:               l.chain,
		PendingTransactions: pending,
		LastAnchoredEventID: l.lastAnchoredEventID,
		ExportedAt:          l.now().UnixMilli(),
	})
}

// Import replaces the ledger state with an exported chain. The candidate is
// fully validated first; on any error the current state is left untouched.
func (l *Ledger) Import(data []byte) error {
	var exp models.ChainExport
	if err := json.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	if err := validateChain(exp.Chain, l.cfg.Difficulty); err != nil {
		return err
	}
	if err := validatePending(exp.Chain, exp.PendingTransactions); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tip := exp.Chain[len(exp.Chain)-1]
	if l.repo != nil {
		cp := &models.Checkpoint{
			ID:        uuid.NewString(),
			Height:    tip.Index,
			TipHash:   tip.Hash,
			Timestamp: l.now().UnixMilli(),
		}
		if err := l.repo.ReplaceChain(exp.Chain, exp.PendingTransactions, exp.LastAnchoredEventID, cp); err != nil {
			return fmt.Errorf("persist imported chain: %w", err)
		}
	}
	l.replaceStateLocked(exp.Chain, exp.PendingTransactions, exp.LastAnchoredEventID)

	logger.Logger.Info("Imported audit chain",
		zap.Int64("height", tip.Index), zap.Int("pending", len(exp.PendingTransactions)))
	return nil
}
