package models

type AccountBalances struct {
	Available              *float64 `json:"available"`
	Current                *float64 `json:"current"`
	Limit                  *float64 `json:"limit"`
	ISOCurrencyCode        string   `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode string   `json:"unofficial_currency_code,omitempty"`
}

type Account struct {
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	OfficialName string          `json:"official_name,omitempty"`
	Mask         string          `json:"mask,omitempty"`
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype,omitempty"`
	Balances     AccountBalances `json:"balances"`
}
