package services

import (
	"fmt"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/vault"
)

const legacyKeyID = "v1"

// KeyConfig is the raw key material configuration. Keys is a comma list of
// "id:base64" or "id:algorithm:base64"; LegacyKey is a lone base64 key used
// under id v1 when Keys is empty.
type KeyConfig struct {
	ActiveKeyID string
	Keys        string
	LegacyKey   string
}

// NewCodec builds the process codec. Every fail-soft read is logged and
// counted here and nowhere else.
func NewCodec(cfg KeyConfig, recorder metrics.Recorder, logger *log.Logger) (*vault.Codec, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	encoded, active := cfg.Keys, cfg.ActiveKeyID
	if encoded == "" && cfg.LegacyKey != "" {
		encoded = legacyKeyID + ":" + cfg.LegacyKey
		if active == "" {
			active = legacyKeyID
		}
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: no keys configured", ErrInvalidKeyConfig)
	}

	ring, err := vault.ParseKeyRing(active, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyConfig, err)
	}

	observer := func(aad, keyID, reason string) {
		recorder.DecryptFailure(aad, reason)
		logger.Warn().Str("field", aad).Str("key_id", keyID).Str("reason", reason).Msg("Encrypted field read back as default")
	}
	return vault.NewCodec(ring, vault.WithFailureObserver(observer)), nil
}
