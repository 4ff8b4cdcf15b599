// Package cryptox holds the symmetric cipher used to keep secrets encrypted at
// rest and the password hasher used for account passwords.
//
// A Cipher is constructed once at startup from the configured key material and
// handed to every component that needs it; there is no package-level key.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialization vector length in bytes.
	IVSize = aes.BlockSize

	ModeCBC = "cbc"
	ModeGCM = "gcm"
)

// Cipher encrypts and decrypts secret strings. Ciphertext is hex encoded.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NewCipher returns the cipher for mode. An empty mode means ModeCBC.
func NewCipher(mode string, key, iv []byte) (Cipher, error) {
	switch mode {
	case "", ModeCBC:
		return NewCBCCipher(key, iv)
	case ModeGCM:
		return NewGCMCipher(key)
	default:
		return nil, fmt.Errorf("unknown cipher mode %q", mode)
	}
}

// CBCCipher is AES-256-CBC with PKCS#7 padding and a fixed IV.
//
// The IV never changes, so equal plaintexts always produce equal ciphertexts.
// Stored secrets depend on this format; switching a deployment to GCMCipher
// requires re-encrypting existing rows.
type CBCCipher struct {
	block cipher.Block
	iv    []byte
}

func NewCBCCipher(key, iv []byte) (*CBCCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid encryption key length: expected %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid encryption iv length: expected %d bytes, got %d", IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CBCCipher{block: block, iv: bytes.Clone(iv)}, nil
}

func (c *CBCCipher) Encrypt(plaintext string) (string, error) {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

func (c *CBCCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", common.ErrDecryption)
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", common.ErrDecryption)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", common.ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}

// GCMCipher is AES-256-GCM with a random nonce per call. The nonce is
// prepended to the sealed data before hex encoding. Tampering is detected on
// Decrypt.
type GCMCipher struct {
	aead cipher.AEAD
}

func NewGCMCipher(key []byte) (*GCMCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid encryption key length: expected %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &GCMCipher{aead: aead}, nil
}

func (c *GCMCipher) Encrypt(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(c.aead.NonceSize())
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

func (c *GCMCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return string(plain), nil
}
