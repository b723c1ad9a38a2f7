package repository_test

import (
	"errors"
	"testing"

	"audit-chain/db"
	"audit-chain/models"
	"audit-chain/repository"
)

func newRepo(t *testing.T) *repository.LevelDBRepository {
	t.Helper()
	ldb, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })
	return repository.NewChainRepository(ldb)
}

func block(index int64) *models.Block {
	return &models.Block{
		Index:        index,
		Timestamp:    1700000000000 + index,
		Data:         "b",
		Hash:         "hash-" + string(rune('a'+index)),
		Transactions: []models.Transaction{},
	}
}

func TestGetAllBlocks_ReturnsIndexOrder(t *testing.T) {
	repo := newRepo(t)

	// 10 sorts before 2 without zero padding
	for _, i := range []int64{10, 2, 0, 1} {
		if err := repo.CommitBlock(block(i), nil); err != nil {
			t.Fatalf("commit block %d: %v", i, err)
		}
	}

	blocks, err := repo.GetAllBlocks()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	want := []int64{0, 1, 2, 10}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(blocks))
	}
	for i, b := range blocks {
		if b.Index != want[i] {
			t.Fatalf("position %d: expected index %d, got %d", i, want[i], b.Index)
		}
	}
}

func TestGetBlock_NotFound(t *testing.T) {
	repo := newRepo(t)
	if _, err := repo.GetBlock(3); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitBlock_ClearsPendingAndWritesCheckpoint(t *testing.T) {
	repo := newRepo(t)

	pending := []models.Transaction{{ID: "tx1", Hash: "h1"}}
	if err := repo.PutPending(pending, "evt-1"); err != nil {
		t.Fatalf("put pending: %v", err)
	}
	got, lastID, err := repo.GetPending()
	if err != nil || len(got) != 1 || got[0].ID != "tx1" {
		t.Fatalf("expected stored pending tx1, got %v (err %v)", got, err)
	}
	if lastID != "evt-1" {
		t.Fatalf("expected last anchored event evt-1, got %q", lastID)
	}

	b := block(1)
	cp := &models.Checkpoint{ID: "cp1", Height: 1, TipHash: b.Hash}
	if err := repo.CommitBlock(b, cp); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, lastID, err = repo.GetPending()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty pending pool, got %d", len(got))
	}
	// Mining empties the pool but the event stays the last one anchored
	if lastID != "evt-1" {
		t.Fatalf("expected last anchored event to survive commit, got %q", lastID)
	}
	stored, err := repo.GetBlock(1)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if stored.Hash != b.Hash {
		t.Fatalf("expected hash %s, got %s", b.Hash, stored.Hash)
	}
	latest, err := repo.GetLatestCheckpoint()
	if err != nil {
		t.Fatalf("latest checkpoint: %v", err)
	}
	if latest == nil || latest.ID != "cp1" {
		t.Fatalf("expected checkpoint cp1, got %+v", latest)
	}
}

func TestGetLatestCheckpoint(t *testing.T) {
	repo := newRepo(t)

	latest, err := repo.GetLatestCheckpoint()
	if err != nil || latest != nil {
		t.Fatalf("expected no checkpoint, got %+v (err %v)", latest, err)
	}

	for _, h := range []int64{9, 11, 2} {
		if err := repo.CommitBlock(block(h), &models.Checkpoint{ID: "cp", Height: h}); err != nil {
			t.Fatal(err)
		}
	}
	latest, err = repo.GetLatestCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	if latest.Height != 11 {
		t.Fatalf("expected height 11, got %d", latest.Height)
	}
}

func TestReplaceChain_DropsOldState(t *testing.T) {
	repo := newRepo(t)

	for i := int64(0); i < 4; i++ {
		if err := repo.CommitBlock(block(i), &models.Checkpoint{ID: "old", Height: i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.PutPending([]models.Transaction{{ID: "old-tx"}}, "old-evt"); err != nil {
		t.Fatal(err)
	}

	replacement := []*models.Block{block(0), block(1)}
	newPending := []models.Transaction{{ID: "new-tx"}}
	if err := repo.ReplaceChain(replacement, newPending, "new-evt", &models.Checkpoint{ID: "new", Height: 1}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	blocks, err := repo.GetAllBlocks()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	pending, lastID, err := repo.GetPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "new-tx" {
		t.Fatalf("expected pending new-tx, got %v", pending)
	}
	if lastID != "new-evt" {
		t.Fatalf("expected last anchored event new-evt, got %q", lastID)
	}
	cp, err := repo.GetLatestCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	if cp.ID != "new" {
		t.Fatalf("expected checkpoint new, got %s", cp.ID)
	}
}

func TestPutPending_EmptyPoolKeepsLastAnchoredEvent(t *testing.T) {
	repo := newRepo(t)

	if err := repo.PutPending(nil, "evt-9"); err != nil {
		t.Fatal(err)
	}
	pending, lastID, err := repo.GetPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending transactions, got %d", len(pending))
	}
	if lastID != "evt-9" {
		t.Fatalf("expected evt-9, got %q", lastID)
	}

	if err := repo.ReplaceChain([]*models.Block{block(0)}, nil, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, lastID, err = repo.GetPending(); err != nil || lastID != "" {
		t.Fatalf("expected cleared last anchored event, got %q (err %v)", lastID, err)
	}
}
