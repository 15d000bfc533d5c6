package cryptox

import (
	"encoding/binary"
	"math/bits"
)

// Key and nonce sizes for the ChaCha20 keystream (RFC 8439).
const (
	KeySize   = 32
	NonceSize = 12
)

// chachaConstant is the "expand 32-byte k" block constant.
var chachaConstant = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

func quarterRound(s *[16]uint32, a, b, c, d int) {
	s[a] += s[b]
	s[d] = bits.RotateLeft32(s[d]^s[a], 16)
	s[c] += s[d]
	s[b] = bits.RotateLeft32(s[b]^s[c], 12)
	s[a] += s[b]
	s[d] = bits.RotateLeft32(s[d]^s[a], 8)
	s[c] += s[d]
	s[b] = bits.RotateLeft32(s[b]^s[c], 7)
}

// chachaBlock produces one 64-byte keystream block for the given
// key/counter/nonce state (RFC 8439 §2.3).
func chachaBlock(key [KeySize]byte, counter uint32, nonce [NonceSize]byte) [64]byte {
	var s [16]uint32
	s[0], s[1], s[2], s[3] = chachaConstant[0], chachaConstant[1], chachaConstant[2], chachaConstant[3]
	for i := 0; i < 8; i++ {
		s[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	s[12] = counter
	s[13] = binary.LittleEndian.Uint32(nonce[0:])
	s[14] = binary.LittleEndian.Uint32(nonce[4:])
	s[15] = binary.LittleEndian.Uint32(nonce[8:])

	initial := s
	for i := 0; i < 10; i++ {
		quarterRound(&s, 0, 4, 8, 12)
		quarterRound(&s, 1, 5, 9, 13)
		quarterRound(&s, 2, 6, 10, 14)
		quarterRound(&s, 3, 7, 11, 15)
		quarterRound(&s, 0, 5, 10, 15)
		quarterRound(&s, 1, 6, 11, 12)
		quarterRound(&s, 2, 7, 8, 13)
		quarterRound(&s, 3, 4, 9, 14)
	}

	var out [64]byte
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], s[i]+initial[i])
	}
	return out
}

// StreamXOR XORs data against the ChaCha20 keystream for (key, nonce)
// starting at the given block counter and returns the result. XOR is its
// own inverse, so the same call both encrypts and decrypts.
//
// The caller owns nonce discipline: a (key, nonce, counter) triple must
// never be reused for two different plaintexts. The codec enforces this by
// drawing a fresh random nonce for every seal.
func StreamXOR(key [KeySize]byte, nonce [NonceSize]byte, counter uint32, data []byte) []byte {
	out := make([]byte, len(data))
	for off := 0; off < len(data); off += 64 {
		ks := chachaBlock(key, counter, nonce)
		counter++
		n := len(data) - off
		if n > 64 {
			n = 64
		}
		for i := 0; i < n; i++ {
			out[off+i] = data[off+i] ^ ks[i]
		}
	}
	return out
}
