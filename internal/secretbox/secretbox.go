// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package secretbox seals sync payloads before they are uploaded to a
// third-party object store. The key is derived from the shared sync
// password with scrypt; payloads are sealed with XChaCha20-Poly1305 using
// a random nonce prepended to the ciphertext. The remote index itself
// stays plaintext since it carries only fingerprints.
package secretbox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt cost parameters: N=2^15, r=8, p=1, 32-byte key.
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// ErrDecrypt is returned when a sealed payload fails authentication,
// usually a wrong sync password or a corrupted object.
var ErrDecrypt = errors.New("payload decryption failed")

// Box seals and opens payloads with a password-derived key.
type Box struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New derives the key from password and salt and returns a ready Box.
// All devices sharing one remote must use the same password; the salt is
// a stable per-remote string (the base path works well).
func New(password, salt string) (*Box, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving payload key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating aead: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce||ciphertext blob produced by Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrDecrypt
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	plaintext, err := b.aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
