package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"audit-chain/db"
	"audit-chain/models"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	blockPrefix      = "block:"
	checkpointPrefix = "checkpoint:"
	pendingKey       = "pending"
	lastAnchoredKey  = "last_anchored_event_id"
)

// ErrNotFound is returned when a requested block does not exist
var ErrNotFound = errors.New("repository: not found")

// It abstracts the storage layer from the ledger
type ChainRepository interface {
	GetBlock(index int64) (*models.Block, error)
	GetAllBlocks() ([]*models.Block, error)
	CommitBlock(block *models.Block, cp *models.Checkpoint) error
	PutPending(txs []models.Transaction, lastAnchoredEventID string) error
	GetPending() ([]models.Transaction, string, error)
	GetLatestCheckpoint() (*models.Checkpoint, error)
	ReplaceChain(blocks []*models.Block, pending []models.Transaction, lastAnchoredEventID string, cp *models.Checkpoint) error
}

// ChainRepository implementation using LevelDB as the storage backend
type LevelDBRepository struct {
	db *db.LevelDB
}

// NewChainRepository creates and returns a new LevelDBRepository instance
func NewChainRepository(db *db.LevelDB) *LevelDBRepository {
	return &LevelDBRepository{db: db}
}

// Keys are zero padded so that LevelDB key order is chain order
func blockKey(index int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockPrefix, index))
}

func checkpointKey(height int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", checkpointPrefix, height))
}

// GetBlock retrieves a block by index
func (r *LevelDBRepository) GetBlock(index int64) (*models.Block, error) {
	data, err := r.db.Get(blockKey(index))
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, index)
	}
	if err != nil {
		return nil, err
	}
	var block models.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetAllBlocks retrieves every stored block in index order
func (r *LevelDBRepository) GetAllBlocks() ([]*models.Block, error) {
	iter := r.db.NewIterator([]byte(blockPrefix))
	defer iter.Release()

	var blocks []*models.Block
	for iter.Next() {
		var block models.Block
		if err := json.Unmarshal(iter.Value(), &block); err != nil {
			return nil, err
		}
		blocks = append(blocks, &block)
	}
	return blocks, iter.Error()
}

// CommitBlock writes a freshly sealed block and its checkpoint and clears the pending pool in one batch
func (r *LevelDBRepository) CommitBlock(block *models.Block, cp *models.Checkpoint) error {
	batch := new(leveldb.Batch)
	if err := putJSON(batch, blockKey(block.Index), block); err != nil {
		return err
	}
	if cp != nil {
		if err := putJSON(batch, checkpointKey(cp.Height), cp); err != nil {
			return err
		}
	}
	batch.Delete([]byte(pendingKey))
	return r.db.Write(batch)
}

// PutPending overwrites the stored pending pool and the id of the last anchored event in one batch
func (r *LevelDBRepository) PutPending(txs []models.Transaction, lastAnchoredEventID string) error {
	batch := new(leveldb.Batch)
	if err := putPending(batch, txs, lastAnchoredEventID); err != nil {
		return err
	}
	return r.db.Write(batch)
}

// GetPending returns the stored pending pool and last anchored event id, empty when none was saved
func (r *LevelDBRepository) GetPending() ([]models.Transaction, string, error) {
	var lastID string
	data, err := r.db.Get([]byte(lastAnchoredKey))
	switch {
	case err == nil:
		lastID = string(data)
	case !errors.Is(err, db.ErrNotFound):
		return nil, "", err
	}

	data, err = r.db.Get([]byte(pendingKey))
	if errors.Is(err, db.ErrNotFound) {
		return nil, lastID, nil
	}
	if err != nil {
		return nil, "", err
	}
	var txs []models.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, "", err
	}
	return txs, lastID, nil
}

// Retrieves the highest checkpoint, nil when none exists
func (r *LevelDBRepository) GetLatestCheckpoint() (*models.Checkpoint, error) {
	iter := r.db.NewIterator([]byte(checkpointPrefix))
	defer iter.Release()

	if !iter.Last() {
		return nil, iter.Error()
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(iter.Value(), &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ReplaceChain atomically drops the stored chain and writes the given one in its place
func (r *LevelDBRepository) ReplaceChain(blocks []*models.Block, pending []models.Transaction, lastAnchoredEventID string, cp *models.Checkpoint) error {
	batch := new(leveldb.Batch)

	for _, prefix := range []string{blockPrefix, checkpointPrefix} {
		iter := r.db.NewIterator([]byte(prefix))
		for iter.Next() {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return err
		}
	}

	for _, block := range blocks {
		if err := putJSON(batch, blockKey(block.Index), block); err != nil {
			return err
		}
	}
	if err := putPending(batch, pending, lastAnchoredEventID); err != nil {
		return err
	}
	if cp != nil {
		if err := putJSON(batch, checkpointKey(cp.Height), cp); err != nil {
			return err
		}
	}
	return r.db.Write(batch)
}

func putPending(batch *leveldb.Batch, txs []models.Transaction, lastAnchoredEventID string) error {
	if lastAnchoredEventID == "" {
		batch.Delete([]byte(lastAnchoredKey))
	} else {
		batch.Put([]byte(lastAnchoredKey), []byte(lastAnchoredEventID))
	}
	if len(txs) == 0 {
		batch.Delete([]byte(pendingKey))
		return nil
	}
	return putJSON(batch, []byte(pendingKey), txs)
}

func putJSON(batch *leveldb.Batch, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	batch.Put(key, data)
	return nil
}
