package models

// PersonalFinanceCategory is the upstream categorisation of a transaction.
type PersonalFinanceCategory struct {
	Primary         string `json:"primary"`
	Detailed        string `json:"detailed,omitempty"`
	ConfidenceLevel string `json:"confidence_level,omitempty"`
}

// Location is where a transaction took place, as far as the feed knows.
type Location struct {
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	Region      string   `json:"region,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
	Country     string   `json:"country,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	StoreNumber string   `json:"store_number,omitempty"`
}

type Counterparty struct {
	Name            string `json:"name"`
	Type            string `json:"type,omitempty"`
	EntityID        string `json:"entity_id,omitempty"`
	Website         string `json:"website,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
	ConfidenceLevel string `json:"confidence_level,omitempty"`
}

type PaymentMeta struct {
	ReferenceNumber  string `json:"reference_number,omitempty"`
	PPDID            string `json:"ppd_id,omitempty"`
	Payee            string `json:"payee,omitempty"`
	ByOrderOf        string `json:"by_order_of,omitempty"`
	Payer            string `json:"payer,omitempty"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentProcessor string `json:"payment_processor,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// Transaction is one cached upstream transaction, kept with every field the
// feed reports. Unnecessary is derived locally on every sync and is never
// taken from the feed.
type Transaction struct {
	TransactionID                  string                   `json:"transaction_id,omitempty"`
	PendingTransactionID           string                   `json:"pending_transaction_id,omitempty"`
	AccountID                      string                   `json:"account_id,omitempty"`
	AccountOwner                   string                   `json:"account_owner,omitempty"`
	Name                           string                   `json:"name,omitempty"`
	MerchantName                   string                   `json:"merchant_name,omitempty"`
	MerchantEntityID               string                   `json:"merchant_entity_id,omitempty"`
	OriginalDescription            string                   `json:"original_description,omitempty"`
	Amount                         float64                  `json:"amount"`
	ISOCurrencyCode                string                   `json:"iso_currency_code,omitempty"`
	UnofficialCurrencyCode         string                   `json:"unofficial_currency_code,omitempty"`
	Date                           string                   `json:"date,omitempty"`
	Datetime                       string                   `json:"datetime,omitempty"`
	AuthorizedDate                 string                   `json:"authorized_date,omitempty"`
	AuthorizedDatetime             string                   `json:"authorized_datetime,omitempty"`
	Pending                        bool                     `json:"pending"`
	PaymentChannel                 string                   `json:"payment_channel,omitempty"`
	TransactionType                string                   `json:"transaction_type,omitempty"`
	TransactionCode                string                   `json:"transaction_code,omitempty"`
	CheckNumber                    string                   `json:"check_number,omitempty"`
	Category                       []string                 `json:"category,omitempty"`
	CategoryID                     string                   `json:"category_id,omitempty"`
	Location                       *Location                `json:"location,omitempty"`
	PaymentMeta                    *PaymentMeta             `json:"payment_meta,omitempty"`
	Counterparties                 []Counterparty           `json:"counterparties,omitempty"`
	Website                        string                   `json:"website,omitempty"`
	LogoURL                        string                   `json:"logo_url,omitempty"`
	PersonalFinanceCategory        *PersonalFinanceCategory `json:"personal_finance_category,omitempty"`
	PersonalFinanceCategoryIconURL string                   `json:"personal_finance_category_icon_url,omitempty"`
	Unnecessary                    bool                     `json:"unnecessary"`
}

// Key identifies the transaction for merging: the transaction id, or the
// pending transaction id when the former is missing.
func (t Transaction) Key() string {
	if t.TransactionID != "" {
		return t.TransactionID
	}
	return t.PendingTransactionID
}

// RemovedTransaction is a deletion reported by the delta stream.
type RemovedTransaction struct {
	TransactionID        string `json:"transaction_id,omitempty"`
	PendingTransactionID string `json:"pending_transaction_id,omitempty"`
	AccountID            string `json:"account_id,omitempty"`
}

func (r RemovedTransaction) Key() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.PendingTransactionID
}

// TransactionSync is the outcome of one sync handed to the request layer.
type TransactionSync struct {
	ItemID             string               `json:"item_id,omitempty"`
	Transactions       []Transaction        `json:"transactions"`
	TotalTransactions  int                  `json:"total_transactions"`
	LatestTransactions []Transaction        `json:"latest_transactions"`
	Removed            []RemovedTransaction `json:"removed"`
}
