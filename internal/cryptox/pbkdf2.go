package cryptox

import (
	"encoding/binary"
	"fmt"

	"github.com/olibuijr/docvault/internal/common"
)

// DeriveKey implements PBKDF2-HMAC-SHA256 (RFC 8018 §5.2).
//
// It is fully deterministic: identical (password, salt, iterations, keyLen)
// inputs produce byte-identical output across processes, which is what makes
// decrypting a previously sealed file possible. Iteration count is a
// security parameter chosen by the caller; the configuration default is
// 100000.
//
// keyLen must be positive and iterations at least one; anything else is a
// configuration mistake and fails fast with common.ErrInvalidKeyLength
// rather than being silently clamped.
func DeriveKey(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: requested %d bytes", common.ErrInvalidKeyLength, keyLen)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iteration count %d", common.ErrInvalidKeyLength, iterations)
	}

	dk := make([]byte, 0, keyLen)
	blocks := (keyLen + DigestSize - 1) / DigestSize

	for block := 1; block <= blocks; block++ {
		// U1 = PRF(password, salt || INT_BE(block))
		msg := make([]byte, 0, len(salt)+4)
		msg = append(msg, salt...)
		msg = binary.BigEndian.AppendUint32(msg, uint32(block))

		u := MacSHA256(password, msg)
		t := u

		// Un = PRF(password, Un-1); T = U1 ^ U2 ^ ... ^ Uc
		for i := 1; i < iterations; i++ {
			u = MacSHA256(password, u[:])
			for j := range t {
				t[j] ^= u[j]
			}
		}

		dk = append(dk, t[:]...)
	}

	return dk[:keyLen], nil
}
