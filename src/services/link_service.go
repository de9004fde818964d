package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/phuslu/log"

	"fintool-server/src/logging"
	"fintool-server/src/metrics"
	"fintool-server/src/models"
	"fintool-server/src/plaid"
	"fintool-server/src/vault"
)

// AccountService reads live balances for the linked item.
type AccountService struct {
	store    UserStore
	codec    *vault.Codec
	upstream Upstream
	metrics  metrics.Recorder
	logger   *log.Logger
}

func NewAccountService(store UserStore, codec *vault.Codec, upstream Upstream, recorder metrics.Recorder, logger *log.Logger) *AccountService {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AccountService{store: store, codec: codec, upstream: upstream, metrics: recorder, logger: logger}
}

type AccountsResult struct {
	ItemID   string           `json:"item_id,omitempty"`
	Accounts []models.Account `json:"accounts"`
}

// Accounts returns the balances of every account of the linked item. A
// rejected credential is cleared along with the transaction cache.
func (s *AccountService) Accounts(ctx context.Context, userID int64) (*AccountsResult, error) {
	start := time.Now()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	accessToken := user.AccessToken(s.codec)
	if accessToken == "" {
		s.metrics.SyncRun(metrics.ProductAccounts, metrics.OutcomeUnlinked, time.Since(start))
		return &AccountsResult{Accounts: []models.Account{}}, nil
	}

	accounts, err := s.upstream.AccountsBalance(ctx, accessToken)
	if err != nil {
		if credentialRejected(err, false) {
			user.ClearTransactionLink()
			s.metrics.CredentialInvalidated(metrics.ProductAccounts)
			if saveErr := s.store.SaveUser(ctx, user); saveErr != nil {
				s.logger.Error().Err(saveErr).Int64("user_id", userID).Msg("Failed to clear rejected credential")
			}
			s.metrics.SyncRun(metrics.ProductAccounts, metrics.OutcomeInvalidated, time.Since(start))
		} else {
			s.metrics.SyncRun(metrics.ProductAccounts, metrics.OutcomeFailed, time.Since(start))
		}
		return nil, err
	}

	s.metrics.SyncRun(metrics.ProductAccounts, metrics.OutcomeUnchanged, time.Since(start))
	return &AccountsResult{ItemID: user.ItemID(s.codec), Accounts: nonNil(accounts)}, nil
}

// LinkService issues link tokens and stores the credential of a newly
// linked item.
type LinkService struct {
	store    UserStore
	codec    *vault.Codec
	upstream Upstream
	products []string
	metrics  metrics.Recorder
	logger   *log.Logger
}

func NewLinkService(store UserStore, codec *vault.Codec, upstream Upstream, products []string, recorder metrics.Recorder, logger *log.Logger) *LinkService {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &LinkService{store: store, codec: codec, upstream: upstream, products: products, metrics: recorder, logger: logger}
}

// CreateLinkToken opens the existing item in update mode when it lacks any
// configured product, and starts a fresh link otherwise.
func (s *LinkService) CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkToken, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	req := plaid.LinkTokenRequest{UserID: userID, Products: s.products}
	if accessToken := user.AccessToken(s.codec); accessToken != "" {
		item, err := s.upstream.ItemProducts(ctx, accessToken)
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Item lookup failed while creating link token")
		} else if missing := missingProducts(s.products, item.Billed); len(missing) > 0 {
			req = plaid.LinkTokenRequest{
				UserID:                      userID,
				AccessToken:                 accessToken,
				AdditionalConsentedProducts: missing,
			}
		}
	}

	token, err := s.upstream.CreateLinkToken(ctx, req)
	if err != nil {
		return nil, err
	}

	mode := "create"
	if req.AccessToken != "" {
		mode = "update"
	}
	s.logger.Info().Int64("user_id", userID).Str("mode", mode).Msg("Created link token")
	return token, nil
}

// ExchangePublicToken trades a public token for a credential and stores
// the credential and item id encrypted.
func (s *LinkService) ExchangePublicToken(ctx context.Context, userID int64, publicToken string) (string, error) {
	if strings.TrimSpace(publicToken) == "" {
		return "", ErrMissingPublicToken
	}

	accessToken, itemID, err := s.upstream.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return "", err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	if err := user.SetAccessToken(s.codec, accessToken); err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	if err := user.SetItemID(s.codec, itemID); err != nil {
		return "", fmt.Errorf("encrypt item id: %w", err)
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return "", fmt.Errorf("save user %d: %w", userID, err)
	}
	s.metrics.VaultWrite(metrics.ProductLink)

	s.logger.Info().Int64("user_id", userID).Msg("Linked item")
	return itemID, nil
}

func missingProducts(wanted, billed []string) []string {
	var missing []string
	for _, p := range wanted {
		if !slices.Contains(billed, p) {
			missing = append(missing, p)
		}
	}
	return missing
}
