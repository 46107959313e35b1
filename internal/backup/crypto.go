// Package backup seals exports with a passphrase and moves them to and
// from their destinations.
package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32 // AES-256
	nonceSize        = 12 // GCM standard nonce size
	saltSize         = 16
	pbkdf2Iterations = 100000

	// EnvelopeVersion is written into every sealed export
	EnvelopeVersion = 1
)

// ErrDecrypt is returned for a wrong passphrase or corrupted data
var ErrDecrypt = errors.New("decryption failed: invalid passphrase or corrupted data")

// Crypto handles encryption/decryption
type Crypto struct {
	key []byte
}

// NewCrypto creates a crypto instance with a key derived from passphrase
func NewCrypto(passphrase string, salt []byte) *Crypto {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	return &Crypto{key: key}
}

// GenerateSalt generates a random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (c *Crypto) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts data using AES-256-GCM. The nonce is prefixed to the
// ciphertext and the result is base64 encoded.
func (c *Crypto) Encrypt(plaintext []byte) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt
func (c *Crypto) Decrypt(encrypted string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Envelope is the on-disk form of a sealed export
type Envelope struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Data    string `json:"data"`
}

// Seal encrypts plaintext under passphrase with a fresh salt
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	data, err := NewCrypto(passphrase, salt).Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	return json.MarshalIndent(Envelope{
		Version: EnvelopeVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Data:    data,
	}, "", "  ")
}

// Unseal decrypts an envelope produced by Seal
func Unseal(sealed []byte, passphrase string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return NewCrypto(passphrase, salt).Decrypt(env.Data)
}

// IsSealed reports whether data looks like an envelope rather than a plain export
func IsSealed(data []byte) bool {
	var probe struct {
		Version *int    `json:"version"`
		Salt    *string `json:"salt"`
		Data    *string `json:"data"`
	}
	if json.Unmarshal(data, &probe) != nil {
		return false
	}
	return probe.Version != nil && probe.Salt != nil && probe.Data != nil
}
