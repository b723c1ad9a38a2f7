package models

import (
	"strconv"

	"audit-chain/hashutil"
)

// Block is one sealed batch of audit transactions in the chain.
type Block struct {
	Index        int64         `json:"index"`         // position in the chain, genesis is 0
	Timestamp    int64         `json:"timestamp"`     // unix timestamp in ms
	Data         string        `json:"data"`          // opaque label
	PreviousHash string        `json:"previous_hash"` // hash of block Index-1
	Hash         string        `json:"hash"`
	Nonce        uint64        `json:"nonce"`
	MerkleRoot   string        `json:"merkle_root"` // root over transaction hashes
	Transactions []Transaction `json:"transactions"`
}

// Header returns the fields covered by the block hash, minus the nonce.
func (b *Block) Header() BlockHeader {
	return BlockHeader{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Data:         b.Data,
		MerkleRoot:   b.MerkleRoot,
	}
}

// CalculateHash recomputes the block hash from its contents.
func (b *Block) CalculateHash() string {
	return b.Header().Hash(b.Nonce)
}

// TransactionHashes returns the transaction hashes in block order.
func (b *Block) TransactionHashes() []string {
	hashes := make([]string, len(b.Transactions))
	for i := range b.Transactions {
		hashes[i] = b.Transactions[i].Hash
	}
	return hashes
}

// BlockHeader is what proof of work commits to.
// The preimage is index|previousHash|timestamp|len(data):data|nonce|merkleRoot.
// Data is length prefixed so no byte can move across a field boundary.
type BlockHeader struct {
	Index        int64
	PreviousHash string
	Timestamp    int64
	Data         string
	MerkleRoot   string
}

const fieldSeparator = '|'

// Prefix returns the preimage bytes that precede the nonce.
func (h BlockHeader) Prefix() []byte {
	buf := strconv.AppendInt(nil, h.Index, 10)
	buf = append(buf, fieldSeparator)
	buf = append(buf, h.PreviousHash...)
	buf = append(buf, fieldSeparator)
	buf = strconv.AppendInt(buf, h.Timestamp, 10)
	buf = append(buf, fieldSeparator)
	buf = strconv.AppendInt(buf, int64(len(h.Data)), 10)
	buf = append(buf, ':')
	buf = append(buf, h.Data...)
	return append(buf, fieldSeparator)
}

// Suffix returns the preimage bytes that follow the nonce.
func (h BlockHeader) Suffix() []byte {
	buf := make([]byte, 0, len(h.MerkleRoot)+1)
	buf = append(buf, fieldSeparator)
	return append(buf, h.MerkleRoot...)
}

// Hash returns the hex SHA-256 of the header preimage with nonce.
func (h BlockHeader) Hash(nonce uint64) string {
	buf := strconv.AppendUint(h.Prefix(), nonce, 10)
	buf = append(buf, h.Suffix()...)
	return hashutil.SHA256Hex(buf)
}
