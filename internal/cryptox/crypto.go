// Package cryptox implements the cryptography of the node-to-node link:
// X25519 key agreement with HKDF-SHA256 channel-key derivation, and
// AES-GCM sealing of wire payloads under the derived key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ChannelKeySize is the size of the derived symmetric channel key (AES-256).
const ChannelKeySize = 32

// gcmNonceSize is the standard AES-GCM nonce size. The nonce is prepended
// to the ciphertext on the wire.
const gcmNonceSize = 12

// hkdfInfoChannel is the HKDF info string for channel-key derivation.
// Changing it invalidates every key both sides would derive.
var hkdfInfoChannel = []byte("clinsync.channel.v1")

// GenerateKeyExchange creates a fresh ephemeral X25519 key pair. One pair is
// generated per channel and discarded once the key is derived, so each
// channel gets a unique key and no long-term secret can recover it.
func GenerateKeyExchange() (*ecdh.PrivateKey, error) {
	return ecdh.X25519().GenerateKey(rand.Reader)
}

// DeriveChannelKey computes the shared X25519 secret against the peer's
// public key and stretches it to a ChannelKeySize AES key via HKDF-SHA256.
// Both sides derive the same key without it ever crossing the wire.
func DeriveChannelKey(priv *ecdh.PrivateKey, peerPublic []byte) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}

	key := make([]byte, ChannelKeySize)
	kdf := hkdf.New(sha256.New, secret, nil, hkdfInfoChannel)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}

	return key, nil
}

// Seal encrypts plaintext under the channel key with AES-GCM. A random
// 12-byte nonce is generated per message and prepended to the ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal-produced message (nonce || ciphertext).
func Open(sealed, key []byte) ([]byte, error) {
	if len(sealed) < gcmNonceSize {
		return nil, errors.New("sealed message too short")
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:gcmNonceSize], sealed[gcmNonceSize:]
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealJSON marshals v to JSON and seals it under the channel key.
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Seal(plaintext, key)
}

// OpenJSON opens a sealed message and unmarshals the plaintext into v.
func OpenJSON(sealed, key []byte, v any) error {
	plaintext, err := Open(sealed, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// RandBytes returns n cryptographically random bytes.
func RandBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
