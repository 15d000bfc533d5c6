package cryptox

import "crypto/rand"

// RandBytes returns size cryptographically random bytes.
func RandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WipeBytes overwrites b with zeros. Useful for passphrases and derived
// keys once they are no longer needed. A nil slice is a no-op.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
