// Package merkle builds binary Merkle trees over hex encoded hashes and
// produces inclusion proofs for individual leaves.
//
// Leaves are paired left to right. When a level has an odd number of nodes
// the last one is paired with itself. Interior nodes are H(left ∥ right)
// over the hex strings of the children.
package merkle

import (
	"errors"
	"fmt"

	"audit-chain/hashutil"
)

// ErrIndexOutOfRange is returned when a proof is requested for a leaf that does not exist.
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// Position says on which side of the running hash a sibling sits.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// Step is one sibling on the path from a leaf to the root.
type Step struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// EmptyRoot is the root of a tree with no leaves: H("").
var EmptyRoot = hashutil.String("")

// Root computes the Merkle root of hashes.
func Root(hashes []string) string {
	if len(hashes) == 0 {
		return EmptyRoot
	}
	level := append([]string(nil), hashes...)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// Proof returns the sibling path for the leaf at index.
// A tree with a single leaf has an empty proof.
func Proof(hashes []string, index int) ([]Step, error) {
	if index < 0 || index >= len(hashes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(hashes))
	}

	proof := []Step{}
	level := append([]string(nil), hashes...)
	for len(level) > 1 {
		if index%2 == 0 {
			sibling := index + 1
			if sibling >= len(level) {
				sibling = index
			}
			proof = append(proof, Step{Hash: level[sibling], Position: Right})
		} else {
			proof = append(proof, Step{Hash: level[index-1], Position: Left})
		}
		level = nextLevel(level)
		index /= 2
	}
	return proof, nil
}

// Verify folds leaf with each proof step in order and compares the result to root.
func Verify(leaf string, proof []Step, root string) bool {
	current := leaf
	for _, step := range proof {
		switch step.Position {
		case Left:
			current = hashPair(step.Hash, current)
		case Right:
			current = hashPair(current, step.Hash)
		default:
			return false
		}
	}
	return current == root
}

func nextLevel(level []string) []string {
	next := make([]string, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, hashPair(left, right))
	}
	return next
}

func hashPair(left, right string) string {
	return hashutil.String(left, right)
}
