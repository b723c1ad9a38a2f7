// Package ledger implements the audit chain: a single-node, append-only
// sequence of proof-of-work sealed blocks that anchor external audit events.
//
// Events enter a pending pool as signed transactions. The pool is sealed into
// a block once it reaches the block threshold, or when the chain has been idle
// for longer than the idle interval. Every block commits to its transactions
// through a Merkle root, so an AuditAnchor can prove inclusion with a short
// sibling path.
//
// The ledger has no peers, no consensus and no fork resolution.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"audit-chain/logger"
	"audit-chain/merkle"
	"audit-chain/miner"
	"audit-chain/models"
	"audit-chain/repository"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const (
	GenesisData         = "Genesis Block"
	GenesisPreviousHash = "0"

	// ChainAddress is the recipient of every anchoring transaction.
	ChainAddress = "audit-chain"
)

var (
	ErrInvalidChain        = errors.New("ledger: invalid chain")
	ErrBlockNotFound       = errors.New("ledger: block not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrInvalidEvent        = errors.New("ledger: invalid audit event")
)

// Config tunes block production.
type Config struct {
	Difficulty     int
	BlockThreshold int
	IdleInterval   time.Duration
	// MiningTimeout bounds each proof-of-work search. Zero leaves it bounded only by the caller's context.
	MiningTimeout time.Duration
	NodeID        string
}

func DefaultConfig() Config {
	return Config{
		Difficulty:     miner.DefaultDifficulty,
		BlockThreshold: 10,
		IdleInterval:   5 * time.Minute,
		MiningTimeout:  2 * time.Minute,
		NodeID:         "audit-node",
	}
}

// Option customizes a Ledger at construction.
type Option func(*Ledger)

// WithRepository persists every sealed block and the pending pool, and restores from it on start.
func WithRepository(repo repository.ChainRepository) Option {
	return func(l *Ledger) { l.repo = repo }
}

// WithSigner replaces the default HMAC signer.
func WithSigner(s Signer) Option {
	return func(l *Ledger) { l.signer = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

type txLocation struct {
	block    int64
	position int
}

// Ledger is safe for concurrent use. Mining holds the lock, so an anchor
// that triggers mining blocks other callers until the block is sealed.
type Ledger struct {
	cfg    Config
	repo   repository.ChainRepository
	signer Signer
	now    func() time.Time

	mu                  deadlock.Mutex
	chain               []*models.Block
	pending             []models.Transaction
	lastAnchoredEventID string
	lastBlockAt         time.Time
	txIndex             map[string]txLocation
}

// New builds a ledger. With a non-empty repository the stored chain is
// restored and verified; otherwise a genesis block is mined.
func New(ctx context.Context, cfg Config, opts ...Option) (*Ledger, error) {
	if err := miner.ValidateDifficulty(cfg.Difficulty); err != nil {
		return nil, err
	}
	if cfg.BlockThreshold <= 0 {
		return nil, fmt.Errorf("block threshold must be positive, got %d", cfg.BlockThreshold)
	}

	l := &Ledger{
		cfg:     cfg,
		signer:  NewHMACSigner(cfg.NodeID),
		now:     time.Now,
		txIndex: make(map[string]txLocation),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.repo != nil {
		restored, err := l.restore()
		if err != nil {
			return nil, err
		}
		if restored {
			return l, nil
		}
	}

	if err := l.createGenesis(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) createGenesis(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	genesis := &models.Block{
		Index:        0,
		Timestamp:    l.now().UnixMilli(),
		Data:         GenesisData,
		PreviousHash: GenesisPreviousHash,
		MerkleRoot:   merkle.EmptyRoot,
		Transactions: []models.Transaction{},
	}
	if err := l.sealLocked(ctx, genesis); err != nil {
		return fmt.Errorf("mine genesis block: %w", err)
	}
	logger.Logger.Info("Genesis block created",
		zap.String("hash", genesis.Hash), zap.Int("difficulty", l.cfg.Difficulty))
	return nil
}

// restore loads a persisted chain. It reports false when the repository is empty.
func (l *Ledger) restore() (bool, error) {
	blocks, err := l.repo.GetAllBlocks()
	if err != nil {
		return false, fmt.Errorf("load blocks: %w", err)
	}
	if len(blocks) == 0 {
		return false, nil
	}
	if err := validateChain(blocks, l.cfg.Difficulty); err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}

	tip := blocks[len(blocks)-1]
	cp, err := l.repo.GetLatestCheckpoint()
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp != nil {
		if cp.Height != tip.Index || cp.TipHash != tip.Hash {
			return false, fmt.Errorf("%w: checkpoint at height %d does not match tip %d", ErrInvalidChain, cp.Height, tip.Index)
		}
		stored, err := l.repo.GetBlock(cp.Height)
		if err != nil {
			return false, fmt.Errorf("load checkpointed block: %w", err)
		}
		if stored.Hash != cp.TipHash {
			return false, fmt.Errorf("%w: checkpointed block %d has hash %s", ErrInvalidChain, cp.Height, stored.Hash)
		}
	}

	pending, lastAnchoredEventID, err := l.repo.GetPending()
	if err != nil {
		return false, fmt.Errorf("load pending transactions: %w", err)
	}
	if err := validatePending(blocks, pending); err != nil {
		return false, fmt.Errorf("restore: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.replaceStateLocked(blocks, pending, lastAnchoredEventID)

	logger.Logger.Info("Restored audit chain",
		zap.Int64("height", tip.Index), zap.Int("pending", len(pending)))
	return true, nil
}

// AnchorAuditEvent records an audit event in the pending pool and mines a
// block when the pool is full or the chain has been idle too long.
//
// The returned anchor is final when a block was mined and pending otherwise.
// If mining fails the transaction stays pending: the anchor is still returned,
// together with the mining error.
func (l *Ledger) AnchorAuditEvent(ctx context.Context, auditEventID, auditEventHash string, metadata map[string]interface{}) (*models.AuditAnchor, error) {
	if auditEventID == "" {
		return nil, fmt.Errorf("%w: empty event id", ErrInvalidEvent)
	}
	if auditEventHash == "" {
		return nil, fmt.Errorf("%w: empty event hash", ErrInvalidEvent)
	}

	var meta json.RawMessage
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidEvent, err)
		}
		meta = encoded
	}

	tx := models.Transaction{
		ID:        uuid.NewString(),
		Timestamp: l.now().UnixMilli(),
		From:      l.cfg.NodeID,
		To:        ChainAddress,
		Payload: models.TransactionPayload{
			AuditEventID:   auditEventID,
			AuditEventHash: auditEventHash,
			Metadata:       meta,
		},
	}
	hash, err := tx.CalculateHash()
	if err != nil {
		return nil, err
	}
	tx.Hash = hash
	if tx.Signature, err = l.signer.Sign(tx.Hash); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, tx)
	if l.repo != nil {
		if err := l.repo.PutPending(l.pending, auditEventID); err != nil {
			l.pending = l.pending[:len(l.pending)-1]
			return nil, fmt.Errorf("persist pending pool: %w", err)
		}
	}
	l.lastAnchoredEventID = auditEventID

	logger.Logger.Debug("Audit event queued",
		zap.String("audit_event_id", auditEventID),
		zap.String("transaction_id", tx.ID),
		zap.Int("pending", len(l.pending)))

	if l.shouldMineLocked() {
		if _, err := l.mineLocked(ctx); err != nil {
			anchor, _ := l.anchorLocked(tx.ID)
			return anchor, err
		}
	}
	return l.anchorLocked(tx.ID)
}

func (l *Ledger) shouldMineLocked() bool {
	if len(l.pending) == 0 {
		return false
	}
	if len(l.pending) >= l.cfg.BlockThreshold {
		return true
	}
	return l.cfg.IdleInterval > 0 && l.now().Sub(l.lastBlockAt) >= l.cfg.IdleInterval
}

// Anchor returns the current anchor for a transaction.
func (l *Ledger) Anchor(txID string) (*models.AuditAnchor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.anchorLocked(txID)
}

func (l *Ledger) anchorLocked(txID string) (*models.AuditAnchor, error) {
	if loc, ok := l.txIndex[txID]; ok {
		block := l.chain[loc.block]
		proof, err := merkle.Proof(block.TransactionHashes(), loc.position)
		if err != nil {
			return nil, err
		}
		return &models.AuditAnchor{
			BlockIndex:    block.Index,
			TransactionID: txID,
			MerkleProof:   proof,
			AuditEventID:  block.Transactions[loc.position].Payload.AuditEventID,
			AnchoredAt:    block.Timestamp,
		}, nil
	}

	for i := range l.pending {
		if l.pending[i].ID == txID {
			return &models.AuditAnchor{
				BlockIndex:    l.tipLocked().Index + 1,
				TransactionID: txID,
				MerkleProof:   []merkle.Step{},
				AuditEventID:  l.pending[i].Payload.AuditEventID,
				AnchoredAt:    l.pending[i].Timestamp,
				Pending:       true,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txID)
}

// Flush mines the pending pool into a block right away. It returns a nil block when the pool is empty.
func (l *Ledger) Flush(ctx context.Context) (*models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, nil
	}
	return l.mineLocked(ctx)
}

// Run mines a stale non-empty pool whenever the idle interval elapses, until ctx is done.
func (l *Ledger) Run(ctx context.Context) {
	if l.cfg.IdleInterval <= 0 {
		return
	}
	interval := l.cfg.IdleInterval / 5
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.shouldMineLocked() {
				if _, err := l.mineLocked(ctx); err != nil {
					logger.Logger.Warn("Idle block mining failed", zap.Error(err))
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Ledger) mineLocked(ctx context.Context) (*models.Block, error) {
	tip := l.tipLocked()
	txs := make([]models.Transaction, len(l.pending))
	copy(txs, l.pending)

	block := &models.Block{
		Index:        tip.Index + 1,
		Timestamp:    l.now().UnixMilli(),
		Data:         fmt.Sprintf("audit batch of %d transactions", len(txs)),
		PreviousHash: tip.Hash,
		Transactions: txs,
	}
	block.MerkleRoot = merkle.Root(block.TransactionHashes())

	if err := l.sealLocked(ctx, block); err != nil {
		logger.Logger.Warn("Mining failed, transactions stay pending",
			zap.Int64("block_index", block.Index), zap.Int("pending", len(txs)), zap.Error(err))
		return nil, err
	}
	l.pending = nil

	logger.Logger.Info("Block mined",
		zap.Int64("block_index", block.Index),
		zap.String("hash", block.Hash),
		zap.Uint64("nonce", block.Nonce),
		zap.Int("transactions", len(txs)))
	return block, nil
}

// sealLocked runs proof of work on block, persists it and appends it to the chain.
func (l *Ledger) sealLocked(ctx context.Context, block *models.Block) error {
	if l.cfg.MiningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.MiningTimeout)
		defer cancel()
	}

	res, err := miner.Mine(ctx, block.Header(), l.cfg.Difficulty)
	if err != nil {
		return err
	}
	block.Nonce = res.Nonce
	block.Hash = res.Hash

	if l.repo != nil {
		cp := &models.Checkpoint{
			ID:        uuid.NewString(),
			Height:    block.Index,
			TipHash:   block.Hash,
			Timestamp: block.Timestamp,
		}
		if err := l.repo.CommitBlock(block, cp); err != nil {
			return fmt.Errorf("persist block %d: %w", block.Index, err)
		}
	}

	l.chain = append(l.chain, block)
	for i := range block.Transactions {
		l.txIndex[block.Transactions[i].ID] = txLocation{block: block.Index, position: i}
	}
	l.lastBlockAt = time.UnixMilli(block.Timestamp)
	return nil
}

func (l *Ledger) tipLocked() *models.Block {
	return l.chain[len(l.chain)-1]
}

// replaceStateLocked swaps in an already validated chain.
func (l *Ledger) replaceStateLocked(blocks []*models.Block, pending []models.Transaction, lastEventID string) {
	l.chain = blocks
	l.pending = pending
	l.lastAnchoredEventID = lastEventID
	l.txIndex = make(map[string]txLocation)
	for _, b := range blocks {
		for i := range b.Transactions {
			l.txIndex[b.Transactions[i].ID] = txLocation{block: b.Index, position: i}
		}
	}
	l.lastBlockAt = time.UnixMilli(blocks[len(blocks)-1].Timestamp)
}

// Block returns a copy of the block at index.
func (l *Ledger) Block(index int64) (*models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= int64(len(l.chain)) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, index)
	}
	return cloneBlock(l.chain[index]), nil
}

// Blocks returns a copy of the whole chain.
func (l *Ledger) Blocks() []*models.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = cloneBlock(b)
	}
	return out
}

// Pending returns a copy of the pending pool.
func (l *Ledger) Pending() []models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Transaction{}, l.pending...)
}

func (l *Ledger) Stats() models.ChainStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	tip := l.tipLocked()
	return models.ChainStats{
		Height:              tip.Index,
		PendingCount:        len(l.pending),
		Difficulty:          l.cfg.Difficulty,
		LastBlockHash:       tip.Hash,
		LastBlockAt:         tip.Timestamp,
		LastAnchoredEventID: l.lastAnchoredEventID,
	}
}

// VerifyTransactionSignature checks a transaction signature with the ledger's signer.
func (l *Ledger) VerifyTransactionSignature(tx *models.Transaction) bool {
	return l.signer.Verify(tx.Hash, tx.Signature)
}

func cloneBlock(b *models.Block) *models.Block {
	c := *b
	c.Transactions = append([]models.Transaction{}, b.Transactions...)
	return &c
}
