// Package services holds the sync, link and composition logic that sits
// between the HTTP handlers, the encrypted user store and the upstream
// aggregation feed.
package services

import (
	"context"
	"errors"
	"time"

	"fintool-server/src/models"
	"fintool-server/src/plaid"
)

var (
	ErrSyncPageLimit           = errors.New("upstream sync exceeded the page limit")
	ErrSyncMutationRetries     = errors.New("upstream data kept changing during sync")
	ErrInvestmentsNotConsented = errors.New("investments not consented for linked item")
	ErrInvalidKeyConfig        = errors.New("invalid encryption key configuration")
	ErrMissingPublicToken      = errors.New("public_token is required")
)

// UserStore loads and saves whole user vault documents. GetUser returns an
// empty document for a user that has never stored anything.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Upstream is the account-aggregation feed.
type Upstream interface {
	TransactionsSync(ctx context.Context, accessToken, cursor string) (*plaid.SyncPage, error)
	AccountsBalance(ctx context.Context, accessToken string) ([]models.Account, error)
	ItemProducts(ctx context.Context, accessToken string) (*plaid.ItemProducts, error)
	InvestmentHoldings(ctx context.Context, accessToken string) (*plaid.HoldingsListing, error)
	InvestmentTransactions(ctx context.Context, accessToken string, start, end time.Time) (*plaid.InvestmentTransactionsListing, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkToken, error)
}

// credentialRejected reports whether err means the stored credential must
// be dropped. Forbidden only counts for products that opt in.
func credentialRejected(err error, forbiddenCounts bool) bool {
	perr, ok := plaid.AsError(err)
	if !ok {
		return false
	}
	if perr.Code == plaid.CodeMutationDuringPagination {
		return false
	}
	return perr.IsClientError() || (forbiddenCounts && perr.IsForbidden())
}
