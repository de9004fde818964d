package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is the stored form of one encrypted attribute. Byte fields are
// base64 encoded when the record is marshalled to JSON.
type Record struct {
	KeyID      string `json:"keyId"`
	IV         []byte `json:"iv"`
	Tag        []byte `json:"tag"`
	Ciphertext []byte `json:"ct"`
}

// Reasons reported to a FailureObserver.
const (
	ReasonUnknownKey = "unknown_key"
	ReasonMalformed  = "malformed"
	ReasonAuthFailed = "auth_failed"
	ReasonDecode     = "decode"
)

// FailureObserver is told about every fail-soft decryption. It never sees
// key material or payload bytes.
type FailureObserver func(aad, keyID, reason string)

type Codec struct {
	ring     *KeyRing
	random   io.Reader
	observer FailureObserver
}

type CodecOption func(*Codec)

func WithFailureObserver(fn FailureObserver) CodecOption {
	return func(c *Codec) { c.observer = fn }
}

// WithRandom replaces the nonce source. Only tests should need this.
func WithRandom(r io.Reader) CodecOption {
	return func(c *Codec) { c.random = r }
}

func NewCodec(ring *KeyRing, opts ...CodecOption) *Codec {
	c := &Codec{ring: ring, random: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) KeyRing() *KeyRing {
	return c.ring
}

// Seal encrypts plaintext under the active key with aad bound as associated data.
func (c *Codec) Seal(plaintext []byte, aad string) (*Record, error) {
	keyID := c.ring.ActiveKeyID()
	aead, err := c.ring.aead(keyID)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, []byte(aad))
	split := len(sealed) - aead.Overhead()

	return &Record{
		KeyID:      keyID,
		IV:         iv,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Open authenticates and decrypts rec. It reports false for a nil record,
// an unknown key, a malformed layout, or an authentication failure.
func (c *Codec) Open(rec *Record, aad string) ([]byte, bool) {
	if rec == nil {
		return nil, false
	}

	aead, err := c.ring.aead(rec.KeyID)
	if err != nil {
		c.fail(aad, rec.KeyID, ReasonUnknownKey)
		return nil, false
	}

	if len(rec.IV) != aead.NonceSize() || len(rec.Tag) != aead.Overhead() {
		c.fail(aad, rec.KeyID, ReasonMalformed)
		return nil, false
	}

	sealed := make([]byte, 0, len(rec.Ciphertext)+len(rec.Tag))
	sealed = append(sealed, rec.Ciphertext...)
	sealed = append(sealed, rec.Tag...)

	plaintext, err := aead.Open(nil, rec.IV, sealed, []byte(aad))
	if err != nil {
		c.fail(aad, rec.KeyID, ReasonAuthFailed)
		return nil, false
	}
	return plaintext, true
}

// Rewrap re-encrypts rec under the active key. It returns the record
// unchanged when it is already bound to the active key.
func (c *Codec) Rewrap(rec *Record, aad string) (*Record, bool, error) {
	if rec == nil || rec.KeyID == c.ring.ActiveKeyID() {
		return rec, false, nil
	}

	plaintext, ok := c.Open(rec, aad)
	if !ok {
		return rec, false, ErrUndecryptable
	}

	out, err := c.Seal(plaintext, aad)
	if err != nil {
		return rec, false, err
	}
	return out, true, nil
}

// ErrUndecryptable is only returned by Rewrap; reads never surface it.
var ErrUndecryptable = errors.New("record cannot be decrypted")

func (c *Codec) fail(aad, keyID, reason string) {
	if c.observer != nil {
		c.observer(aad, keyID, reason)
	}
}

// Encrypt serializes value as JSON and seals it.
func Encrypt[T any](c *Codec, value T, aad string) (*Record, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return c.Seal(raw, aad)
}

// Decrypt opens rec and deserializes it into T.
func Decrypt[T any](c *Codec, rec *Record, aad string) (T, bool) {
	var out T
	raw, ok := c.Open(rec, aad)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		c.fail(aad, rec.KeyID, ReasonDecode)
		var zero T
		return zero, false
	}
	return out, true
}
