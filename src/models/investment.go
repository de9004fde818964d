package models

import "time"

type Holding struct {
	AccountID              string   `json:"account_id"`
	SecurityID             string   `json:"security_id"`
	Quantity               float64  `json:"quantity"`
	InstitutionPrice       *float64 `json:"institution_price"`
	InstitutionPriceAsOf   string   `json:"institution_price_as_of,omitempty"`
	InstitutionValue       float64  `json:"institution_value"`
	CostBasis              *float64 `json:"cost_basis,omitempty"`
	ISOCurrencyCode        string   `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode string   `json:"unofficial_currency_code,omitempty"`
}

type Security struct {
	SecurityID             string   `json:"security_id"`
	TickerSymbol           string   `json:"ticker_symbol,omitempty"`
	Name                   string   `json:"name,omitempty"`
	Type                   string   `json:"type,omitempty"`
	ClosePrice             *float64 `json:"close_price,omitempty"`
	ClosePriceAsOf         string   `json:"close_price_as_of,omitempty"`
	ISOCurrencyCode        string   `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode string   `json:"unofficial_currency_code,omitempty"`
	IsCashEquivalent       bool     `json:"is_cash_equivalent,omitempty"`
}

type InvestmentTransaction struct {
	InvestmentTransactionID string   `json:"investment_transaction_id"`
	AccountID               string   `json:"account_id"`
	SecurityID              string   `json:"security_id,omitempty"`
	Date                    string   `json:"date"`
	Name                    string   `json:"name"`
	Quantity                float64  `json:"quantity"`
	Amount                  float64  `json:"amount"`
	Price                   float64  `json:"price"`
	Fees                    *float64 `json:"fees,omitempty"`
	Type                    string   `json:"type"`
	Subtype                 string   `json:"subtype,omitempty"`
	ISOCurrencyCode         string   `json:"iso_currency_code,omitempty"`
}

// Investments is the snapshot returned after an investments sync.
type Investments struct {
	Accounts               []Account               `json:"accounts"`
	Holdings               []Holding               `json:"holdings"`
	InvestmentTransactions []InvestmentTransaction `json:"investment_transactions"`
	Securities             []Security              `json:"securities"`
	AsOf                   *time.Time              `json:"as_of,omitempty"`
}
