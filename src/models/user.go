package models

import (
	"time"

	"fintool-server/src/vault"
)

// Encrypted attributes of a user. The associated data names the attribute,
// so a record copied into another slot does not decrypt there.
var (
	accessTokenField            = vault.StringField("User.plaidAccessToken")
	itemIDField                 = vault.StringField("User.plaidItemId")
	cursorField                 = vault.StringField("User.plaidCursor")
	transactionsField           = vault.ListField[Transaction]("User.plaidTransactions")
	investmentTransactionsField = vault.ListField[InvestmentTransaction]("User.plaidInvestmentTransactions")
	holdingsField               = vault.ListField[Holding]("User.plaidHoldings")
	securitiesField             = vault.ListField[Security]("User.plaidSecurities")
	investmentAccountsField     = vault.ListField[Account]("User.plaidInvestmentAccounts")
)

// User is the stored vault document of one user. Every slot holds only
// ciphertext; plaintext goes through the accessor methods.
type User struct {
	ID        int64     `json:"-"`
	UpdatedAt time.Time `json:"-"`

	PlaidAccessToken            *vault.Record `json:"plaidAccessToken,omitempty"`
	PlaidItemID                 *vault.Record `json:"plaidItemId,omitempty"`
	PlaidCursor                 *vault.Record `json:"plaidCursor,omitempty"`
	PlaidTransactions           *vault.Record `json:"plaidTransactions,omitempty"`
	PlaidInvestmentTransactions *vault.Record `json:"plaidInvestmentTransactions,omitempty"`
	PlaidHoldings               *vault.Record `json:"plaidHoldings,omitempty"`
	PlaidSecurities             *vault.Record `json:"plaidSecurities,omitempty"`
	PlaidInvestmentAccounts     *vault.Record `json:"plaidInvestmentAccounts,omitempty"`
}

func (u *User) AccessToken(c *vault.Codec) string {
	return accessTokenField.Get(c, u.PlaidAccessToken)
}

func (u *User) SetAccessToken(c *vault.Codec, v string) error {
	return accessTokenField.Set(c, &u.PlaidAccessToken, v)
}

func (u *User) ItemID(c *vault.Codec) string {
	return itemIDField.Get(c, u.PlaidItemID)
}

func (u *User) SetItemID(c *vault.Codec, v string) error {
	return itemIDField.Set(c, &u.PlaidItemID, v)
}

func (u *User) Cursor(c *vault.Codec) string {
	return cursorField.Get(c, u.PlaidCursor)
}

func (u *User) SetCursor(c *vault.Codec, v string) error {
	return cursorField.Set(c, &u.PlaidCursor, v)
}

func (u *User) Transactions(c *vault.Codec) []Transaction {
	return transactionsField.Get(c, u.PlaidTransactions)
}

func (u *User) SetTransactions(c *vault.Codec, v []Transaction) error {
	return transactionsField.Set(c, &u.PlaidTransactions, v)
}

func (u *User) InvestmentTransactions(c *vault.Codec) []InvestmentTransaction {
	return investmentTransactionsField.Get(c, u.PlaidInvestmentTransactions)
}

func (u *User) SetInvestmentTransactions(c *vault.Codec, v []InvestmentTransaction) error {
	return investmentTransactionsField.Set(c, &u.PlaidInvestmentTransactions, v)
}

func (u *User) Holdings(c *vault.Codec) []Holding {
	return holdingsField.Get(c, u.PlaidHoldings)
}

func (u *User) SetHoldings(c *vault.Codec, v []Holding) error {
	return holdingsField.Set(c, &u.PlaidHoldings, v)
}

func (u *User) Securities(c *vault.Codec) []Security {
	return securitiesField.Get(c, u.PlaidSecurities)
}

func (u *User) SetSecurities(c *vault.Codec, v []Security) error {
	return securitiesField.Set(c, &u.PlaidSecurities, v)
}

func (u *User) InvestmentAccounts(c *vault.Codec) []Account {
	return investmentAccountsField.Get(c, u.PlaidInvestmentAccounts)
}

func (u *User) SetInvestmentAccounts(c *vault.Codec, v []Account) error {
	return investmentAccountsField.Set(c, &u.PlaidInvestmentAccounts, v)
}

// HasCredential reports whether a readable access token is stored.
func (u *User) HasCredential(c *vault.Codec) bool {
	return u.AccessToken(c) != ""
}

// ClearTransactionLink drops the credential and the transaction cache.
// Investment caches are left untouched.
func (u *User) ClearTransactionLink() {
	accessTokenField.Clear(&u.PlaidAccessToken)
	itemIDField.Clear(&u.PlaidItemID)
	cursorField.Clear(&u.PlaidCursor)
	transactionsField.Clear(&u.PlaidTransactions)
}

// ClearInvestmentLink drops the credential and every investment cache.
// The transaction cache is left untouched.
func (u *User) ClearInvestmentLink() {
	accessTokenField.Clear(&u.PlaidAccessToken)
	itemIDField.Clear(&u.PlaidItemID)
	cursorField.Clear(&u.PlaidCursor)
	investmentTransactionsField.Clear(&u.PlaidInvestmentTransactions)
	holdingsField.Clear(&u.PlaidHoldings)
	securitiesField.Clear(&u.PlaidSecurities)
	investmentAccountsField.Clear(&u.PlaidInvestmentAccounts)
}

// Rewrap moves every slot onto the active key. It returns how many slots
// changed and how many could not be read; unreadable slots are left as is.
func (u *User) Rewrap(c *vault.Codec) (changed, failed int) {
	steps := []func() (bool, error){
		func() (bool, error) { return accessTokenField.Rewrap(c, &u.PlaidAccessToken) },
		func() (bool, error) { return itemIDField.Rewrap(c, &u.PlaidItemID) },
		func() (bool, error) { return cursorField.Rewrap(c, &u.PlaidCursor) },
		func() (bool, error) { return transactionsField.Rewrap(c, &u.PlaidTransactions) },
		func() (bool, error) {
			return investmentTransactionsField.Rewrap(c, &u.PlaidInvestmentTransactions)
		},
		func() (bool, error) { return holdingsField.Rewrap(c, &u.PlaidHoldings) },
		func() (bool, error) { return securitiesField.Rewrap(c, &u.PlaidSecurities) },
		func() (bool, error) { return investmentAccountsField.Rewrap(c, &u.PlaidInvestmentAccounts) },
	}
	for _, step := range steps {
		ok, err := step()
		if err != nil {
			failed++
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, failed
}
