// Package codec implements the reversible transform applied to message
// bodies before transmission and after receipt: AES-ECB with PKCS#7 padding,
// base64-encoded. The scheme and the default key are inherited from the
// historical client so that existing records remain readable.
//
// The single shared symmetric key provides no confidentiality between
// participants. Per-conversation keying is a pending design decision; until
// then the key is injectable through configuration but defaults to the
// legacy value.
package codec

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmartinez-dev/hilo/internal/model"
)

// DefaultKey is the legacy 16-byte key older clients shipped with. Payloads
// written by those clients only decode under this key.
const DefaultKey = "MySuperSecretKey"

// Codec is a pure, stateless transform; safe for concurrent use.
type Codec struct {
	key []byte
}

// New creates a codec with the given key. The key must be 16, 24 or 32 bytes.
func New(key string) (*Codec, error) {
	if key == "" {
		key = DefaultKey
	}
	if _, err := aes.NewCipher([]byte(key)); err != nil {
		return nil, &model.CodecError{Op: "init", Err: err}
	}
	return &Codec{key: []byte(key)}, nil
}

// Encode encrypts plaintext and returns the base64 ciphertext.
func (c *Codec) Encode(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", &model.CodecError{Op: "encode", Err: err}
	}
	padded := pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:], padded[i:])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode reverses Encode. It fails with a CodecError on malformed input;
// callers are expected to fall back to displaying the raw value.
func (c *Codec) Decode(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &model.CodecError{Op: "decode", Err: err}
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", &model.CodecError{Op: "decode", Err: err}
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", &model.CodecError{Op: "decode", Err: fmt.Errorf("ciphertext length %d not a block multiple", len(raw))}
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += block.BlockSize() {
		block.Decrypt(out[i:], raw[i:])
	}
	unpadded, err := unpad(out, block.BlockSize())
	if err != nil {
		return "", &model.CodecError{Op: "decode", Err: err}
	}
	return string(unpadded), nil
}

// DecodeLenient applies Decode up to twice to tolerate historically
// double-encoded records: if the first pass fails the input is returned as-is
// with the error; if a second pass also succeeds its result wins, otherwise
// one pass was enough.
func (c *Codec) DecodeLenient(ciphertext string) (string, error) {
	once, err := c.Decode(ciphertext)
	if err != nil {
		return ciphertext, err
	}
	if twice, err := c.Decode(once); err == nil {
		return twice, nil
	}
	return once, nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
