package models

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintool-server/src/vault"
)

func newCodec(t *testing.T, active string, ids ...string) *vault.Codec {
	t.Helper()
	var specs []vault.KeySpec
	for _, id := range ids {
		// material derives from the id so the same id means the same key
		material := make([]byte, vault.KeySize)
		for j := range material {
			material[j] = id[len(id)-1]
		}
		specs = append(specs, vault.KeySpec{ID: id, Material: material})
	}
	ring, err := vault.NewKeyRing(active, specs...)
	require.NoError(t, err)
	return vault.NewCodec(ring)
}

func TestUser_Accessors(t *testing.T) {
	codec := newCodec(t, "v1", "v1")
	u := &User{ID: 7}

	assert.Equal(t, "", u.AccessToken(codec))
	assert.False(t, u.HasCredential(codec))
	assert.Equal(t, []Transaction{}, u.Transactions(codec))

	require.NoError(t, u.SetAccessToken(codec, "access-sandbox-1"))
	require.NoError(t, u.SetItemID(codec, "item-1"))
	require.NoError(t, u.SetCursor(codec, "cursor-1"))
	require.NoError(t, u.SetTransactions(codec, []Transaction{{TransactionID: "t1", Amount: 4.5}}))
	require.NoError(t, u.SetHoldings(codec, []Holding{{SecurityID: "s1", Quantity: 2}}))

	assert.True(t, u.HasCredential(codec))
	assert.Equal(t, "item-1", u.ItemID(codec))
	assert.Equal(t, "cursor-1", u.Cursor(codec))
	assert.Equal(t, []Transaction{{TransactionID: "t1", Amount: 4.5}}, u.Transactions(codec))
	assert.Equal(t, []Holding{{SecurityID: "s1", Quantity: 2}}, u.Holdings(codec))
}

func TestUser_DocumentHoldsNoPlaintext(t *testing.T) {
	codec := newCodec(t, "v1", "v1")
	u := &User{ID: 7}
	require.NoError(t, u.SetAccessToken(codec, "access-sandbox-secret"))

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "access-sandbox-secret")
	assert.NotContains(t, string(raw), base64.StdEncoding.EncodeToString([]byte(`"access-sandbox-secret"`)))

	var back User
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "access-sandbox-secret", back.AccessToken(codec))
}

func TestUser_SlotsAreBoundToTheirField(t *testing.T) {
	codec := newCodec(t, "v1", "v1")
	u := &User{}
	require.NoError(t, u.SetAccessToken(codec, "access-1"))

	u.PlaidItemID = u.PlaidAccessToken
	assert.Equal(t, "", u.ItemID(codec))
	assert.Equal(t, "access-1", u.AccessToken(codec))
}

func TestUser_ClearTransactionLink(t *testing.T) {
	codec := newCodec(t, "v1", "v1")
	u := &User{}
	require.NoError(t, u.SetAccessToken(codec, "a"))
	require.NoError(t, u.SetItemID(codec, "i"))
	require.NoError(t, u.SetCursor(codec, "c"))
	require.NoError(t, u.SetTransactions(codec, []Transaction{{TransactionID: "t1"}}))
	require.NoError(t, u.SetHoldings(codec, []Holding{{SecurityID: "s1"}}))

	u.ClearTransactionLink()

	assert.Nil(t, u.PlaidAccessToken)
	assert.Nil(t, u.PlaidItemID)
	assert.Nil(t, u.PlaidCursor)
	assert.Nil(t, u.PlaidTransactions)
	assert.NotNil(t, u.PlaidHoldings)
}

func TestUser_ClearInvestmentLink(t *testing.T) {
	codec := newCodec(t, "v1", "v1")
	u := &User{}
	require.NoError(t, u.SetAccessToken(codec, "a"))
	require.NoError(t, u.SetTransactions(codec, []Transaction{{TransactionID: "t1"}}))
	require.NoError(t, u.SetHoldings(codec, []Holding{{SecurityID: "s1"}}))
	require.NoError(t, u.SetSecurities(codec, []Security{{SecurityID: "s1"}}))
	require.NoError(t, u.SetInvestmentAccounts(codec, []Account{{AccountID: "a1"}}))
	require.NoError(t, u.SetInvestmentTransactions(codec, []InvestmentTransaction{{InvestmentTransactionID: "it1"}}))

	u.ClearInvestmentLink()

	assert.Nil(t, u.PlaidAccessToken)
	assert.Nil(t, u.PlaidHoldings)
	assert.Nil(t, u.PlaidSecurities)
	assert.Nil(t, u.PlaidInvestmentAccounts)
	assert.Nil(t, u.PlaidInvestmentTransactions)
	assert.NotNil(t, u.PlaidTransactions)
}

func TestUser_Rewrap(t *testing.T) {
	old := newCodec(t, "v1", "v1")
	u := &User{}
	require.NoError(t, u.SetAccessToken(old, "a"))
	require.NoError(t, u.SetTransactions(old, []Transaction{{TransactionID: "t1"}}))

	rotated := newCodec(t, "v2", "v1", "v2")
	changed, failed := u.Rewrap(rotated)
	assert.Equal(t, 2, changed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, "v2", u.PlaidAccessToken.KeyID)
	assert.Equal(t, "a", u.AccessToken(rotated))

	changed, failed = u.Rewrap(rotated)
	assert.Equal(t, 0, changed)
	assert.Equal(t, 0, failed)

	// v1 retired: a slot still bound to it cannot be moved
	require.NoError(t, u.SetCursor(old, "c"))
	retired := newCodec(t, "v2", "v2")
	changed, failed = u.Rewrap(retired)
	assert.Equal(t, 0, changed)
	assert.Equal(t, 1, failed)
}
