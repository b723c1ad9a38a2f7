// Package miner runs the single-threaded proof-of-work search that seals blocks.
package miner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"audit-chain/hashutil"
	"audit-chain/models"
)

// DefaultDifficulty is the number of leading zero hex characters a block hash needs.
const DefaultDifficulty = 4

// YieldInterval is how many nonces are tried between scheduler yields and cancellation checks.
const YieldInterval = 100_000

var (
	ErrMiningTimeout     = errors.New("miner: mining timed out")
	ErrNonceExhausted    = errors.New("miner: nonce space exhausted")
	ErrInvalidDifficulty = errors.New("miner: invalid difficulty")
)

// Result is a successful search.
type Result struct {
	Nonce    uint64
	Hash     string
	Attempts uint64
	Elapsed  time.Duration
}

// MeetsDifficulty reports whether hash starts with difficulty '0' characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty < 0 || len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

// ValidateDifficulty rejects targets no SHA-256 hex digest can meet.
func ValidateDifficulty(difficulty int) error {
	if difficulty < 0 || difficulty > hashutil.Size {
		return fmt.Errorf("%w: %d", ErrInvalidDifficulty, difficulty)
	}
	return nil
}

// Mine searches nonces from zero upward until the header hash meets difficulty.
// The search stops when ctx is done: a passed deadline yields ErrMiningTimeout,
// any other cancellation yields ctx.Err().
func Mine(ctx context.Context, header models.BlockHeader, difficulty int) (Result, error) {
	if err := ValidateDifficulty(difficulty); err != nil {
		return Result{}, err
	}

	start := time.Now()
	target := []byte(strings.Repeat("0", difficulty))
	prefix := header.Prefix()
	suffix := header.Suffix()

	buf := make([]byte, 0, len(prefix)+20+len(suffix))
	var digest [hashutil.Size]byte

	var nonce uint64
	for attempts := uint64(0); ; attempts++ {
		if attempts%YieldInterval == 0 {
			if attempts > 0 {
				runtime.Gosched()
			}
			if err := ctx.Err(); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return Result{}, fmt.Errorf("%w after %d attempts at difficulty %d", ErrMiningTimeout, attempts, difficulty)
				}
				return Result{}, err
			}
		}

		buf = append(buf[:0], prefix...)
		buf = strconv.AppendUint(buf, nonce, 10)
		buf = append(buf, suffix...)
		sum := sha256.Sum256(buf)
		hex.Encode(digest[:], sum[:])

		if string(digest[:difficulty]) == string(target) {
			return Result{
				Nonce:    nonce,
				Hash:     string(digest[:]),
				Attempts: attempts + 1,
				Elapsed:  time.Since(start),
			}, nil
		}

		if nonce == math.MaxUint64 {
			return Result{}, ErrNonceExhausted
		}
		nonce++
	}
}
