package cryptox

// MacSHA256 computes HMAC-SHA256 over msg with the given key (RFC 2104).
//
// Keys longer than the SHA-256 block size are hashed down first; shorter
// keys are zero-padded to the block size. Any key length is accepted.
func MacSHA256(key, msg []byte) [DigestSize]byte {
	var k [sha256BlockSize]byte
	if len(key) > sha256BlockSize {
		d := Sum256(key)
		copy(k[:], d[:])
	} else {
		copy(k[:], key)
	}

	ipad := make([]byte, sha256BlockSize, sha256BlockSize+len(msg))
	opad := make([]byte, sha256BlockSize, sha256BlockSize+DigestSize)
	for i := range k {
		ipad[i] = k[i] ^ 0x36
		opad[i] = k[i] ^ 0x5c
	}

	inner := Sum256(append(ipad, msg...))
	return Sum256(append(opad, inner[:]...))
}

// ConstantTimeEqual reports whether a and b are equal without an
// early exit on the first differing byte. Slices of different lengths
// compare unequal, and the length check is the only data-dependent branch.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
