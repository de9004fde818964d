package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintool-server/src/models"
	"fintool-server/src/plaid"
	"fintool-server/src/vault"
)

// fakeStore keeps documents in their serialized form, the way the real
// store does, so every load is a fresh decode.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[int64][]byte
	saves   int
	getErr  error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[int64][]byte)}
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	user := &models.User{ID: userID}
	if raw, ok := f.docs[userID]; ok {
		if err := json.Unmarshal(raw, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (f *fakeStore) SaveUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	f.docs[user.ID] = raw
	f.saves++
	return nil
}

func (f *fakeStore) ListUserIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) raw(userID int64) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Clone(f.docs[userID])
}

// seed stores a user built by fn without counting it as a save.
func (f *fakeStore) seed(t *testing.T, userID int64, fn func(u *models.User)) {
	t.Helper()
	user := &models.User{ID: userID}
	fn(user)
	raw, err := json.Marshal(user)
	require.NoError(t, err)
	f.mu.Lock()
	f.docs[userID] = raw
	f.mu.Unlock()
}

type fakeUpstream struct {
	syncFn      func(call int, cursor string) (*plaid.SyncPage, error)
	syncCursors []string

	accounts    []models.Account
	accountsErr error

	products    *plaid.ItemProducts
	productsErr error

	holdings    *plaid.HoldingsListing
	holdingsErr error

	investmentTxs    *plaid.InvestmentTransactionsListing
	investmentTxsErr error
	investmentStart  time.Time
	investmentEnd    time.Time

	exchangeAccessToken string
	exchangeItemID      string
	exchangeErr         error

	linkRequests []plaid.LinkTokenRequest
	linkErr      error
}

func (f *fakeUpstream) TransactionsSync(_ context.Context, _ string, cursor string) (*plaid.SyncPage, error) {
	call := len(f.syncCursors)
	f.syncCursors = append(f.syncCursors, cursor)
	if f.syncFn == nil {
		return &plaid.SyncPage{NextCursor: cursor}, nil
	}
	return f.syncFn(call, cursor)
}

func (f *fakeUpstream) AccountsBalance(context.Context, string) ([]models.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeUpstream) ItemProducts(context.Context, string) (*plaid.ItemProducts, error) {
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	if f.products == nil {
		return &plaid.ItemProducts{}, nil
	}
	return f.products, nil
}

func (f *fakeUpstream) InvestmentHoldings(context.Context, string) (*plaid.HoldingsListing, error) {
	if f.holdingsErr != nil {
		return nil, f.holdingsErr
	}
	if f.holdings == nil {
		return &plaid.HoldingsListing{}, nil
	}
	return f.holdings, nil
}

func (f *fakeUpstream) InvestmentTransactions(_ context.Context, _ string, start, end time.Time) (*plaid.InvestmentTransactionsListing, error) {
	f.investmentStart, f.investmentEnd = start, end
	if f.investmentTxsErr != nil {
		return nil, f.investmentTxsErr
	}
	if f.investmentTxs == nil {
		return &plaid.InvestmentTransactionsListing{}, nil
	}
	return f.investmentTxs, nil
}

func (f *fakeUpstream) ExchangePublicToken(context.Context, string) (string, string, error) {
	return f.exchangeAccessToken, f.exchangeItemID, f.exchangeErr
}

func (f *fakeUpstream) CreateLinkToken(_ context.Context, req plaid.LinkTokenRequest) (*plaid.LinkToken, error) {
	f.linkRequests = append(f.linkRequests, req)
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return &plaid.LinkToken{Token: "link-sandbox-1", Expiration: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}, nil
}

// pages scripts a drain: call i returns pages[i].
func pages(list ...*plaid.SyncPage) func(int, string) (*plaid.SyncPage, error) {
	return func(call int, _ string) (*plaid.SyncPage, error) {
		if call >= len(list) {
			return nil, errors.New("unexpected sync call")
		}
		return list[call], nil
	}
}

func upstreamError(status int, code string) error {
	return &plaid.Error{Op: "test", Status: status, Code: code, Message: http.StatusText(status)}
}

func newServiceCodec(t *testing.T) *vault.Codec {
	t.Helper()
	ring, err := vault.NewKeyRing("v1", vault.KeySpec{ID: "v1", Material: bytes.Repeat([]byte{7}, vault.KeySize)})
	require.NoError(t, err)
	return vault.NewCodec(ring)
}

func tx(id, date string) models.Transaction {
	return models.Transaction{TransactionID: id, Date: date, Name: "tx " + id, Amount: 1}
}

func ids(list []models.Transaction) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Key())
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
