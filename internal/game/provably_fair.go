package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// Floats derives count uniform values in [0, 1) from the seed pair. Each
// HMAC-SHA256 block of "clientSeed:nonce:round" yields eight floats built from
// four bytes apiece.
func Floats(serverSeed, clientSeed string, nonce, count int) []float64 {
	out := make([]float64, 0, count)
	for round := 0; len(out) < count; round++ {
		h := hmac.New(sha256.New, []byte(serverSeed))
		h.Write([]byte(fmt.Sprintf("%s:%d:%d", clientSeed, nonce, round)))
		sum := h.Sum(nil)

		for i := 0; i+4 <= len(sum) && len(out) < count; i += 4 {
			f := 0.0
			div := 256.0
			for _, b := range sum[i : i+4] {
				f += float64(b) / div
				div *= 256
			}
			out = append(out, f)
		}
	}
	return out
}

// MineLayout picks mineCount distinct tiles out of tiles with a Fisher-Yates
// selection driven by Floats. The result is sorted ascending.
func MineLayout(serverSeed, clientSeed string, nonce, tiles, mineCount int) []int {
	if mineCount <= 0 || tiles <= 0 {
		return nil
	}
	if mineCount > tiles {
		mineCount = tiles
	}

	pool := make([]int, tiles)
	for i := range pool {
		pool[i] = i
	}
	floats := Floats(serverSeed, clientSeed, nonce, mineCount)

	mines := make([]int, 0, mineCount)
	for _, f := range floats {
		idx := int(f * float64(len(pool)))
		if idx >= len(pool) {
			idx = len(pool) - 1
		}
		mines = append(mines, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	slices.Sort(mines)
	return mines
}

// VerifyMines recomputes a layout and compares it with the claimed one.
func VerifyMines(serverSeed, clientSeed string, nonce, tiles int, claimed []int) bool {
	got := MineLayout(serverSeed, clientSeed, nonce, tiles, len(claimed))
	want := slices.Clone(claimed)
	slices.Sort(want)
	return slices.Equal(got, want)
}
