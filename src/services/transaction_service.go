package services

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/models"
	"fintool-server/src/vault"
)

type TransactionService struct {
	store      UserStore
	codec      *vault.Codec
	reconciler *Reconciler
	metrics    metrics.Recorder
	logger     *log.Logger
}

func NewTransactionService(store UserStore, codec *vault.Codec, reconciler *Reconciler, recorder metrics.Recorder, logger *log.Logger) *TransactionService {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &TransactionService{store: store, codec: codec, reconciler: reconciler, metrics: recorder, logger: logger}
}

// Sync brings the cached transactions of a user up to date. Without a
// linked credential it returns the cache as is. A rejected credential is
// cleared together with the transaction cache before the error returns.
func (s *TransactionService) Sync(ctx context.Context, userID int64) (*models.TransactionSync, error) {
	start := time.Now()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	cached := user.Transactions(s.codec)
	itemID := user.ItemID(s.codec)
	accessToken := user.AccessToken(s.codec)
	if accessToken == "" {
		s.metrics.SyncRun(metrics.ProductTransactions, metrics.OutcomeUnlinked, time.Since(start))
		return newTransactionSync(itemID, PrepareSnapshot(cached), nil), nil
	}

	rec, err := s.reconciler.Reconcile(ctx, accessToken, cached, user.Cursor(s.codec))
	if err != nil {
		if credentialRejected(err, false) {
			s.invalidate(ctx, user)
			s.metrics.SyncRun(metrics.ProductTransactions, metrics.OutcomeInvalidated, time.Since(start))
		} else {
			s.metrics.SyncRun(metrics.ProductTransactions, metrics.OutcomeFailed, time.Since(start))
		}
		return nil, err
	}

	outcome := metrics.OutcomeUnchanged
	if rec.ShouldPersist() {
		if rec.CursorChanged {
			if err := user.SetCursor(s.codec, rec.Cursor); err != nil {
				return nil, fmt.Errorf("encrypt cursor: %w", err)
			}
		}
		if rec.TransactionsChanged {
			if err := user.SetTransactions(s.codec, rec.Transactions); err != nil {
				return nil, fmt.Errorf("encrypt transactions: %w", err)
			}
		}
		if err := s.store.SaveUser(ctx, user); err != nil {
			s.metrics.SyncRun(metrics.ProductTransactions, metrics.OutcomeFailed, time.Since(start))
			return nil, fmt.Errorf("save user %d: %w", userID, err)
		}
		s.metrics.VaultWrite(metrics.ProductTransactions)
		outcome = metrics.OutcomePersisted
	}

	s.metrics.SyncRun(metrics.ProductTransactions, outcome, time.Since(start))
	s.logger.Info().
		Int64("user_id", userID).
		Int("pages", rec.Pages).
		Int("transactions", len(rec.Transactions)).
		Int("removed", len(rec.Removed)).
		Str("outcome", outcome).
		Msg("Synced transactions")

	return newTransactionSync(itemID, rec.Transactions, rec.Removed), nil
}

func (s *TransactionService) invalidate(ctx context.Context, user *models.User) {
	user.ClearTransactionLink()
	s.metrics.CredentialInvalidated(metrics.ProductTransactions)
	if err := s.store.SaveUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to clear rejected credential")
		return
	}
	s.logger.Warn().Int64("user_id", user.ID).Msg("Cleared rejected credential and transaction cache")
}

func newTransactionSync(itemID string, list []models.Transaction, removed []models.RemovedTransaction) *models.TransactionSync {
	if removed == nil {
		removed = []models.RemovedTransaction{}
	}
	return &models.TransactionSync{
		ItemID:             itemID,
		Transactions:       list,
		TotalTransactions:  len(list),
		LatestTransactions: latest(list),
		Removed:            removed,
	}
}
