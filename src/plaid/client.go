package plaid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	"fintool-server/src/models"
)

const (
	syncPageSize        = 500
	investmentsPageSize = 500
	dateLayout          = "2006-01-02"
)

// LinkSettings are the fixed parameters of every link token.
type LinkSettings struct {
	ClientName   string
	Language     string
	CountryCodes []string
	RedirectURI  string
}

// SyncPage is one page of the transactions delta stream.
type SyncPage struct {
	Added      []models.Transaction
	Modified   []models.Transaction
	Removed    []models.RemovedTransaction
	NextCursor string
	HasMore    bool
}

// ItemProducts lists the products of a linked item.
type ItemProducts struct {
	Billed    []string
	Available []string
}

type HoldingsListing struct {
	Accounts   []models.Account
	Holdings   []models.Holding
	Securities []models.Security
}

type InvestmentTransactionsListing struct {
	Accounts               []models.Account
	InvestmentTransactions []models.InvestmentTransaction
	Securities             []models.Security
}

// LinkTokenRequest selects between a fresh link and update mode: with an
// AccessToken set the token re-opens the existing item.
type LinkTokenRequest struct {
	UserID                      int64
	AccessToken                 string
	Products                    []string
	AdditionalConsentedProducts []string
}

type LinkToken struct {
	Token      string
	Expiration time.Time
}

// Client adapts the SDK to the models used by the services. Records are
// carried over through their JSON form.
type Client struct {
	api      *plaid.APIClient
	settings LinkSettings
}

func NewClient(api *plaid.APIClient, settings LinkSettings) *Client {
	return &Client{api: api, settings: settings}
}

func (c *Client) TransactionsSync(ctx context.Context, accessToken, cursor string) (*SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	request.SetCount(syncPageSize)

	resp, httpResp, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("transactions sync", httpResp, err)
	}

	page := &SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	if err := convert(resp.GetAdded(), &page.Added); err != nil {
		return nil, fmt.Errorf("convert added transactions: %w", err)
	}
	if err := convert(resp.GetModified(), &page.Modified); err != nil {
		return nil, fmt.Errorf("convert modified transactions: %w", err)
	}
	if err := convert(resp.GetRemoved(), &page.Removed); err != nil {
		return nil, fmt.Errorf("convert removed transactions: %w", err)
	}
	return page, nil
}

func (c *Client) AccountsBalance(ctx context.Context, accessToken string) ([]models.Account, error) {
	request := plaid.NewAccountsBalanceGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("accounts balance", httpResp, err)
	}

	var accounts []models.Account
	if err := convert(resp.GetAccounts(), &accounts); err != nil {
		return nil, fmt.Errorf("convert accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) ItemProducts(ctx context.Context, accessToken string) (*ItemProducts, error) {
	request := plaid.NewItemGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("item get", httpResp, err)
	}

	var item struct {
		BilledProducts    []string `json:"billed_products"`
		Products          []string `json:"products"`
		AvailableProducts []string `json:"available_products"`
	}
	if err := convert(resp.GetItem(), &item); err != nil {
		return nil, fmt.Errorf("convert item: %w", err)
	}

	billed := item.BilledProducts
	if billed == nil {
		billed = item.Products
	}
	return &ItemProducts{Billed: billed, Available: item.AvailableProducts}, nil
}

func (c *Client) InvestmentHoldings(ctx context.Context, accessToken string) (*HoldingsListing, error) {
	request := plaid.NewInvestmentsHoldingsGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.InvestmentsHoldingsGet(ctx).InvestmentsHoldingsGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("investments holdings", httpResp, err)
	}

	listing := &HoldingsListing{}
	if err := convert(resp.GetAccounts(), &listing.Accounts); err != nil {
		return nil, fmt.Errorf("convert holdings accounts: %w", err)
	}
	if err := convert(resp.GetHoldings(), &listing.Holdings); err != nil {
		return nil, fmt.Errorf("convert holdings: %w", err)
	}
	if err := convert(resp.GetSecurities(), &listing.Securities); err != nil {
		return nil, fmt.Errorf("convert securities: %w", err)
	}
	return listing, nil
}

// InvestmentTransactions pages through every investment transaction dated
// within [start, end].
func (c *Client) InvestmentTransactions(ctx context.Context, accessToken string, start, end time.Time) (*InvestmentTransactionsListing, error) {
	listing := &InvestmentTransactionsListing{}
	var offset int32
	for {
		request := plaid.NewInvestmentsTransactionsGetRequest(accessToken, start.Format(dateLayout), end.Format(dateLayout))
		options := plaid.NewInvestmentsTransactionsGetRequestOptions()
		options.SetCount(investmentsPageSize)
		options.SetOffset(offset)
		request.SetOptions(*options)

		resp, httpResp, err := c.api.PlaidApi.InvestmentsTransactionsGet(ctx).InvestmentsTransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, wrapError("investments transactions", httpResp, err)
		}

		var page InvestmentTransactionsListing
		if err := convert(resp.GetInvestmentTransactions(), &page.InvestmentTransactions); err != nil {
			return nil, fmt.Errorf("convert investment transactions: %w", err)
		}
		if offset == 0 {
			if err := convert(resp.GetAccounts(), &listing.Accounts); err != nil {
				return nil, fmt.Errorf("convert investment accounts: %w", err)
			}
			if err := convert(resp.GetSecurities(), &listing.Securities); err != nil {
				return nil, fmt.Errorf("convert investment securities: %w", err)
			}
		}
		listing.InvestmentTransactions = append(listing.InvestmentTransactions, page.InvestmentTransactions...)

		offset += int32(len(page.InvestmentTransactions))
		if len(page.InvestmentTransactions) == 0 || offset >= resp.GetTotalInvestmentTransactions() {
			return listing, nil
		}
	}
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, httpResp, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", wrapError("public token exchange", httpResp, err)
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkToken, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: strconv.FormatInt(req.UserID, 10),
	}
	countryCodes := make([]plaid.CountryCode, 0, len(c.settings.CountryCodes))
	for _, code := range c.settings.CountryCodes {
		countryCodes = append(countryCodes, plaid.CountryCode(code))
	}

	request := plaid.NewLinkTokenCreateRequest(c.settings.ClientName, c.settings.Language, countryCodes)
	request.SetUser(user)
	if req.AccessToken != "" {
		request.SetAccessToken(req.AccessToken)
	}
	if len(req.Products) > 0 {
		request.SetProducts(toProducts(req.Products))
	}
	if len(req.AdditionalConsentedProducts) > 0 {
		request.SetAdditionalConsentedProducts(toProducts(req.AdditionalConsentedProducts))
	}
	if c.settings.RedirectURI != "" {
		request.SetRedirectUri(c.settings.RedirectURI)
	}

	resp, httpResp, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("link token create", httpResp, err)
	}
	return &LinkToken{Token: resp.GetLinkToken(), Expiration: resp.GetExpiration()}, nil
}

func toProducts(names []string) []plaid.Products {
	out := make([]plaid.Products, 0, len(names))
	for _, name := range names {
		out = append(out, plaid.Products(name))
	}
	return out
}

func convert(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
