package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/models"
	"fintool-server/src/vault"
)

const (
	productInvestments = "investments"

	DefaultInvestmentsLookbackDays = 30
)

// ConsentError is returned when the linked item has not been granted the
// investments product. Available tells whether the institution offers it.
type ConsentError struct {
	Available bool
}

func (e *ConsentError) Error() string {
	if e.Available {
		return "Your connection supports investments, but additional consent is required. Reconnect this institution to grant investments access."
	}
	return "The linked institution does not provide investments data through Plaid. Connect a brokerage account that supports investments."
}

func (e *ConsentError) Unwrap() error {
	return ErrInvestmentsNotConsented
}

type InvestmentService struct {
	store        UserStore
	codec        *vault.Codec
	upstream     Upstream
	lookbackDays int
	now          func() time.Time
	metrics      metrics.Recorder
	logger       *log.Logger
}

func NewInvestmentService(store UserStore, codec *vault.Codec, upstream Upstream, lookbackDays int, recorder metrics.Recorder, logger *log.Logger) *InvestmentService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultInvestmentsLookbackDays
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &InvestmentService{
		store:        store,
		codec:        codec,
		upstream:     upstream,
		lookbackDays: lookbackDays,
		now:          time.Now,
		metrics:      recorder,
		logger:       logger,
	}
}

// Sync refreshes holdings, securities, investment accounts and the recent
// investment transactions of a user and stores them encrypted.
func (s *InvestmentService) Sync(ctx context.Context, userID int64) (*models.Investments, error) {
	start := time.Now()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	accessToken := user.AccessToken(s.codec)
	if accessToken == "" {
		s.metrics.SyncRun(metrics.ProductInvestments, metrics.OutcomeUnlinked, time.Since(start))
		return &models.Investments{
			Accounts:               []models.Account{},
			Holdings:               []models.Holding{},
			InvestmentTransactions: user.InvestmentTransactions(s.codec),
			Securities:             []models.Security{},
		}, nil
	}

	snapshot, err := s.fetch(ctx, accessToken)
	if err != nil {
		if credentialRejected(err, true) {
			s.invalidate(ctx, user)
			s.metrics.SyncRun(metrics.ProductInvestments, metrics.OutcomeInvalidated, time.Since(start))
		} else {
			s.metrics.SyncRun(metrics.ProductInvestments, metrics.OutcomeFailed, time.Since(start))
		}
		return nil, err
	}

	if err := s.cacheSnapshot(user, snapshot); err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		s.metrics.SyncRun(metrics.ProductInvestments, metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("save user %d: %w", userID, err)
	}
	s.metrics.VaultWrite(metrics.ProductInvestments)
	s.metrics.SyncRun(metrics.ProductInvestments, metrics.OutcomePersisted, time.Since(start))

	s.logger.Info().
		Int64("user_id", userID).
		Int("holdings", len(snapshot.Holdings)).
		Int("securities", len(snapshot.Securities)).
		Int("investment_transactions", len(snapshot.InvestmentTransactions)).
		Msg("Synced investments")

	return snapshot, nil
}

func (s *InvestmentService) fetch(ctx context.Context, accessToken string) (*models.Investments, error) {
	products, err := s.upstream.ItemProducts(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(products.Billed, productInvestments) {
		return nil, &ConsentError{Available: slices.Contains(products.Available, productInvestments)}
	}

	holdings, err := s.upstream.InvestmentHoldings(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	startDate := now.AddDate(0, 0, -s.lookbackDays)
	txs, err := s.upstream.InvestmentTransactions(ctx, accessToken, startDate, now)
	if err != nil {
		return nil, err
	}

	asOf := now
	return &models.Investments{
		Accounts:               dedupeAccounts(holdings.Accounts, txs.Accounts),
		Holdings:               nonNil(holdings.Holdings),
		InvestmentTransactions: nonNil(txs.InvestmentTransactions),
		Securities:             dedupeSecurities(holdings.Securities, txs.Securities),
		AsOf:                   &asOf,
	}, nil
}

func (s *InvestmentService) cacheSnapshot(user *models.User, snapshot *models.Investments) error {
	if err := user.SetInvestmentTransactions(s.codec, snapshot.InvestmentTransactions); err != nil {
		return fmt.Errorf("encrypt investment transactions: %w", err)
	}
	if err := user.SetHoldings(s.codec, snapshot.Holdings); err != nil {
		return fmt.Errorf("encrypt holdings: %w", err)
	}
	if err := user.SetSecurities(s.codec, snapshot.Securities); err != nil {
		return fmt.Errorf("encrypt securities: %w", err)
	}
	if err := user.SetInvestmentAccounts(s.codec, snapshot.Accounts); err != nil {
		return fmt.Errorf("encrypt investment accounts: %w", err)
	}
	return nil
}

func (s *InvestmentService) invalidate(ctx context.Context, user *models.User) {
	user.ClearInvestmentLink()
	s.metrics.CredentialInvalidated(metrics.ProductInvestments)
	if err := s.store.SaveUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to clear rejected credential")
		return
	}
	s.logger.Warn().Int64("user_id", user.ID).Msg("Cleared rejected credential and investment caches")
}

// dedupeAccounts keeps the first account seen per id.
func dedupeAccounts(lists ...[]models.Account) []models.Account {
	seen := make(map[string]bool)
	out := []models.Account{}
	for _, list := range lists {
		for _, account := range list {
			if account.AccountID == "" || seen[account.AccountID] {
				continue
			}
			seen[account.AccountID] = true
			out = append(out, account)
		}
	}
	return out
}

// dedupeSecurities keeps the first security seen per id.
func dedupeSecurities(lists ...[]models.Security) []models.Security {
	seen := make(map[string]bool)
	out := []models.Security{}
	for _, list := range lists {
		for _, security := range list {
			if security.SecurityID == "" || seen[security.SecurityID] {
				continue
			}
			seen[security.SecurityID] = true
			out = append(out, security)
		}
	}
	return out
}

func nonNil[E any](list []E) []E {
	if list == nil {
		return []E{}
	}
	return list
}
