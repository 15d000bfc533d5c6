// Package common defines sentinel errors shared across the store, codec
// and sync layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrReserved      = errors.New("collection is reserved")

	// Codec-level errors. ErrCorruptFormat means the plaintext payload did
	// not decode; ErrIntegrityViolation means the authentication tag did
	// not match and the ciphertext was never decrypted. Both are fatal at
	// startup.
	ErrCorruptFormat      = errors.New("corrupt database format")
	ErrIntegrityViolation = errors.New("integrity violation")

	// Configuration errors.
	ErrInvalidKeyLength = errors.New("invalid derived key length")
)
