package codec

import (
	"fmt"

	"github.com/olibuijr/docvault/internal/common"
	"github.com/olibuijr/docvault/internal/cryptox"
)

// On-disk layout: [version:1][salt:16][nonce:12][ciphertext][tag:32].
// The header is stored in the clear (the salt must be readable before the
// key exists) but is covered by the authentication tag.
const (
	FormatVersion byte = 1

	SaltSize   = 16
	TagSize    = cryptox.DigestSize
	headerSize = 1 + SaltSize + cryptox.NonceSize
)

// Vault holds the derived encryption key and its salt. The key is derived
// exactly once per process (derivation is deliberately slow) and lives
// only in memory; the salt is persisted in the file header so the same
// key can be re-derived on the next startup.
type Vault struct {
	key  [cryptox.KeySize]byte
	salt [SaltSize]byte
}

// NewVault derives a key from secret with a fresh random salt. Used when
// no database file exists yet.
func NewVault(secret []byte, iterations int) (*Vault, error) {
	salt, err := cryptox.RandBytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return OpenVault(secret, salt, iterations)
}

// OpenVault derives a key from secret and an existing salt, normally the
// one read from the file header via FileSalt.
func OpenVault(secret, salt []byte, iterations int) (*Vault, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d",
			common.ErrCorruptFormat, SaltSize, len(salt))
	}
	key, err := cryptox.DeriveKey(secret, salt, iterations, cryptox.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	v := &Vault{}
	copy(v.key[:], key)
	copy(v.salt[:], salt)
	cryptox.WipeBytes(key)
	return v, nil
}

// Salt returns a copy of the vault's salt.
func (v *Vault) Salt() []byte {
	out := make([]byte, SaltSize)
	copy(out, v.salt[:])
	return out
}

// FileSalt extracts the key-derivation salt from a sealed file without
// verifying anything else. Startup needs it to derive the key before
// Unseal can authenticate the file; the version byte is only interpreted
// by Unseal, after authentication, so a modified header surfaces as
// tampering rather than an unknown format.
func FileSalt(file []byte) ([]byte, error) {
	if len(file) < headerSize+TagSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", common.ErrCorruptFormat, len(file))
	}
	out := make([]byte, SaltSize)
	copy(out, file[1:1+SaltSize])
	return out, nil
}

// Seal encrypts plaintext under a fresh random nonce and returns the
// complete file image. Drawing a new 96-bit nonce per seal is what keeps
// the (key, nonce) pair from ever repeating for two different plaintexts.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	nonceBytes, err := cryptox.RandBytes(cryptox.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	var nonce [cryptox.NonceSize]byte
	copy(nonce[:], nonceBytes)

	file := make([]byte, 0, headerSize+len(plaintext)+TagSize)
	file = append(file, FormatVersion)
	file = append(file, v.salt[:]...)
	file = append(file, nonce[:]...)
	file = append(file, cryptox.StreamXOR(v.key, nonce, 0, plaintext)...)

	tag := cryptox.MacSHA256(v.key[:], file)
	return append(file, tag[:]...), nil
}

// Unseal authenticates a sealed file and returns its plaintext. The tag
// is recomputed over header and ciphertext and compared in constant time
// before any header byte is interpreted or any decryption happens, so
// every single-byte modification (the version byte included) fails with
// common.ErrIntegrityViolation and the ciphertext is never touched.
func (v *Vault) Unseal(file []byte) ([]byte, error) {
	if len(file) < headerSize+TagSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", common.ErrCorruptFormat, len(file))
	}

	body := file[:len(file)-TagSize]
	storedTag := file[len(file)-TagSize:]

	tag := cryptox.MacSHA256(v.key[:], body)
	if !cryptox.ConstantTimeEqual(tag[:], storedTag) {
		return nil, fmt.Errorf("authentication tag mismatch: %w", common.ErrIntegrityViolation)
	}

	if file[0] != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", common.ErrCorruptFormat, file[0])
	}

	var nonce [cryptox.NonceSize]byte
	copy(nonce[:], file[1+SaltSize:headerSize])
	return cryptox.StreamXOR(v.key, nonce, 0, body[headerSize:]), nil
}
