// Package vault encrypts individual document attributes at rest.
//
// A KeyRing holds the symmetric keys, a Codec seals values into Records under
// the active key, and Field binds a plaintext type to one Record slot on a
// parent entity.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length required by every supported algorithm.
const KeySize = 32

var (
	ErrUnknownKey           = errors.New("unknown key id")
	ErrInvalidKeyMaterial   = errors.New("invalid key material")
	ErrNoActiveKey          = errors.New("active key id is not provisioned")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

type Algorithm string

const (
	AES256GCM        Algorithm = "aes-256-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// KeySpec describes one key to provision.
type KeySpec struct {
	ID        string
	Material  []byte
	Algorithm Algorithm
}

type keyEntry struct {
	material  []byte
	algorithm Algorithm
	aead      cipher.AEAD
}

// KeyRing is read-only after construction and safe for concurrent use.
type KeyRing struct {
	active string
	keys   map[string]keyEntry
}

func NewKeyRing(activeID string, specs ...KeySpec) (*KeyRing, error) {
	ring := &KeyRing{
		active: activeID,
		keys:   make(map[string]keyEntry, len(specs)),
	}

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("%w: empty key id", ErrInvalidKeyMaterial)
		}
		if _, dup := ring.keys[spec.ID]; dup {
			return nil, fmt.Errorf("%w: key id %q provisioned twice", ErrInvalidKeyMaterial, spec.ID)
		}
		if len(spec.Material) != KeySize {
			return nil, fmt.Errorf("%w: key %q must be %d bytes, got %d", ErrInvalidKeyMaterial, spec.ID, KeySize, len(spec.Material))
		}

		alg := spec.Algorithm
		if alg == "" {
			alg = AES256GCM
		}

		material := make([]byte, KeySize)
		copy(material, spec.Material)

		aead, err := newAEAD(alg, material)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", spec.ID, err)
		}

		ring.keys[spec.ID] = keyEntry{material: material, algorithm: alg, aead: aead}
	}

	if _, ok := ring.keys[activeID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoActiveKey, activeID)
	}

	return ring, nil
}

// ParseKeyRing builds a ring from a comma separated list of
// "id:base64" or "id:algorithm:base64" entries.
func ParseKeyRing(activeID, encoded string) (*KeyRing, error) {
	var specs []KeySpec
	for _, entry := range strings.Split(encoded, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		var spec KeySpec
		var b64 string
		switch len(parts) {
		case 2:
			spec.ID, b64 = parts[0], parts[1]
		case 3:
			spec.ID, spec.Algorithm, b64 = parts[0], Algorithm(parts[1]), parts[2]
		default:
			return nil, fmt.Errorf("%w: malformed key entry", ErrInvalidKeyMaterial)
		}

		material, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not valid base64", ErrInvalidKeyMaterial, spec.ID)
		}
		spec.Material = material
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no keys configured", ErrInvalidKeyMaterial)
	}

	return NewKeyRing(activeID, specs...)
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("new cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func (k *KeyRing) ActiveKeyID() string {
	return k.active
}

// Key returns a copy of the material provisioned under id.
func (k *KeyRing) Key(id string) ([]byte, error) {
	entry, ok := k.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	out := make([]byte, len(entry.material))
	copy(out, entry.material)
	return out, nil
}

func (k *KeyRing) Algorithm(id string) (Algorithm, error) {
	entry, ok := k.keys[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	return entry.algorithm, nil
}

// IDs lists the provisioned key ids in lexical order.
func (k *KeyRing) IDs() []string {
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (k *KeyRing) aead(id string) (cipher.AEAD, error) {
	entry, ok := k.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	return entry.aead, nil
}
