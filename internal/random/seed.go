package random

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// SeedDeriver turns attempt coordinates into a 32-bit seed keyed by a server secret
type SeedDeriver struct {
	secret string
}

func NewSeedDeriver(secret string) *SeedDeriver {
	return &SeedDeriver{secret: secret}
}

// Derive hashes examID:studentID:ordinal:secret with SHA-256 and reads the
// first 8 hex characters as an unsigned 32-bit integer.
func (d *SeedDeriver) Derive(examID, studentID string, ordinal int) uint32 {
	input := fmt.Sprintf("%s:%s:%d:%s", examID, studentID, ordinal, d.secret)
	sum := sha256.Sum256([]byte(input))
	digest := hex.EncodeToString(sum[:])

	// 8 hex chars always fit in 32 bits
	seed, _ := strconv.ParseUint(digest[:8], 16, 32)
	return uint32(seed)
}
