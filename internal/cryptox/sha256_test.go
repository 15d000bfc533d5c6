package cryptox

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum256_FIPSVectors(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want string
	}{
		{
			name: "empty message",
			msg:  []byte{},
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "abc",
			msg:  []byte("abc"),
			want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name: "two blocks",
			msg:  []byte("abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq"),
			want: "248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
		},
		{
			name: "one million a",
			msg:  bytes.Repeat([]byte("a"), 1_000_000),
			want: "cdc76e5c9914fb9281a1c7e284d73e67f1809a48a497200e046d39ccc7112cd0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Sum256(tt.msg)
			assert.Equal(t, tt.want, hex.EncodeToString(d[:]))
		})
	}
}

func TestSum256_Deterministic(t *testing.T) {
	msg := []byte("the same input every time")
	require.Equal(t, Sum256(msg), Sum256(msg))
}

func TestSum256_PaddingBoundaries(t *testing.T) {
	// Lengths around the 55/56/64 byte padding edges must all hash
	// without panicking and produce distinct digests.
	seen := make(map[[DigestSize]byte]int)
	for n := 53; n <= 68; n++ {
		d := Sum256(bytes.Repeat([]byte{'x'}, n))
		prev, dup := seen[d]
		require.False(t, dup, "lengths %d and %d collided", prev, n)
		seen[d] = n
	}
}
