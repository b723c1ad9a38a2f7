package ledger

import (
	"fmt"

	"audit-chain/logger"
	"audit-chain/merkle"
	"audit-chain/miner"
	"audit-chain/models"

	"go.uber.org/zap"
)

// VerifyAuditAnchor checks that the anchored transaction sits in the
// referenced block, that the block hash is intact and that the Merkle proof
// reconstructs the block's root. Pending anchors never verify.
func (l *Ledger) VerifyAuditAnchor(anchor *models.AuditAnchor) bool {
	if anchor == nil || anchor.Pending {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if anchor.BlockIndex < 0 || anchor.BlockIndex >= int64(len(l.chain)) {
		return false
	}
	block := l.chain[anchor.BlockIndex]

	var tx *models.Transaction
	for i := range block.Transactions {
		if block.Transactions[i].ID == anchor.TransactionID {
			tx = &block.Transactions[i]
			break
		}
	}
	if tx == nil || tx.Payload.AuditEventID != anchor.AuditEventID {
		return false
	}

	if block.CalculateHash() != block.Hash {
		return false
	}
	return merkle.Verify(tx.Hash, anchor.MerkleProof, block.MerkleRoot)
}

// VerifyIntegrity re-checks every block and every link. Any violation fails the whole chain.
func (l *Ledger) VerifyIntegrity() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := validateChain(l.chain, l.cfg.Difficulty); err != nil {
		logger.Logger.Warn("Audit chain integrity check failed", zap.Error(err))
		return false
	}
	return true
}

func validateChain(chain []*models.Block, difficulty int) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidChain)
	}
	for i, block := range chain {
		if block == nil {
			return fmt.Errorf("%w: missing block at position %d", ErrInvalidChain, i)
		}
		if err := validateBlock(block, difficulty); err != nil {
			return err
		}
		if block.Index != int64(i) {
			return fmt.Errorf("%w: block at position %d has index %d", ErrInvalidChain, i, block.Index)
		}
		if i > 0 && block.PreviousHash != chain[i-1].Hash {
			return fmt.Errorf("%w: block %d does not link to block %d", ErrInvalidChain, i, i-1)
		}
	}
	return nil
}

func validateBlock(block *models.Block, difficulty int) error {
	if block.CalculateHash() != block.Hash {
		return fmt.Errorf("%w: block %d hash mismatch", ErrInvalidChain, block.Index)
	}
	if !miner.MeetsDifficulty(block.Hash, difficulty) {
		return fmt.Errorf("%w: block %d does not meet difficulty %d", ErrInvalidChain, block.Index, difficulty)
	}
	for i := range block.Transactions {
		if err := validateTransaction(&block.Transactions[i]); err != nil {
			return fmt.Errorf("block %d: %w", block.Index, err)
		}
	}
	if merkle.Root(block.TransactionHashes()) != block.MerkleRoot {
		return fmt.Errorf("%w: block %d merkle root mismatch", ErrInvalidChain, block.Index)
	}
	return nil
}

func validateTransaction(tx *models.Transaction) error {
	hash, err := tx.CalculateHash()
	if err != nil {
		return fmt.Errorf("%w: transaction %s: %v", ErrInvalidChain, tx.ID, err)
	}
	if hash != tx.Hash {
		return fmt.Errorf("%w: transaction %s hash mismatch", ErrInvalidChain, tx.ID)
	}
	return nil
}

// validatePending checks pending transaction hashes and that no transaction id appears twice.
func validatePending(chain []*models.Block, pending []models.Transaction) error {
	seen := make(map[string]struct{})
	for _, b := range chain {
		for _, tx := range b.Transactions {
			if _, dup := seen[tx.ID]; dup {
				return fmt.Errorf("%w: duplicate transaction %s", ErrInvalidChain, tx.ID)
			}
			seen[tx.ID] = struct{}{}
		}
	}
	for i := range pending {
		if err := validateTransaction(&pending[i]); err != nil {
			return err
		}
		if _, dup := seen[pending[i].ID]; dup {
			return fmt.Errorf("%w: duplicate transaction %s", ErrInvalidChain, pending[i].ID)
		}
		seen[pending[i].ID] = struct{}{}
	}
	return nil
}
