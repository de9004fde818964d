package services

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/vault"
)

type RekeyReport struct {
	ActiveKeyID  string `json:"active_key_id"`
	Users        int    `json:"users"`
	UsersWritten int    `json:"users_written"`
	Rewrapped    int    `json:"rewrapped"`
	Unreadable   int    `json:"unreadable"`
}

// RekeyService moves stored documents onto the active key so retired key
// ids can be removed from the ring.
type RekeyService struct {
	store  UserStore
	codec  *vault.Codec
	logger *log.Logger
}

func NewRekeyService(store UserStore, codec *vault.Codec, logger *log.Logger) *RekeyService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RekeyService{store: store, codec: codec, logger: logger}
}

// Rekey rewraps every slot bound to another key id. Only users with a
// changed slot are written back; unreadable slots are counted and kept.
func (s *RekeyService) Rekey(ctx context.Context) (RekeyReport, error) {
	report := RekeyReport{ActiveKeyID: s.codec.KeyRing().ActiveKeyID()}

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			return report, fmt.Errorf("load user %d: %w", id, err)
		}
		report.Users++

		changed, failed := user.Rewrap(s.codec)
		report.Unreadable += failed
		if failed > 0 {
			s.logger.Warn().Int64("user_id", id).Int("slots", failed).Msg("Left unreadable slots in place during rekey")
		}
		if changed == 0 {
			continue
		}

		if err := s.store.SaveUser(ctx, user); err != nil {
			return report, fmt.Errorf("save user %d: %w", id, err)
		}
		report.Rewrapped += changed
		report.UsersWritten++
	}

	s.logger.Info().
		Str("active_key_id", report.ActiveKeyID).
		Int("users", report.Users).
		Int("users_written", report.UsersWritten).
		Int("rewrapped", report.Rewrapped).
		Int("unreadable", report.Unreadable).
		Msg("Rekeyed vault documents")
	return report, nil
}
