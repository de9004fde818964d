package models

// AssetRow is one holding prepared as simulation input. It is recomputed on
// every request and never stored.
type AssetRow struct {
	SecurityID     string  `json:"security_id"`
	Name           string  `json:"name"`
	Ticker         string  `json:"ticker"`
	Price          float64 `json:"price"`
	Quantity       float64 `json:"quantity"`
	Value          float64 `json:"value"`
	ExpectedReturn float64 `json:"expectedReturn"`
	Volatility     float64 `json:"volatility"`
	Weight         float64 `json:"weight"`
}

type Composition struct {
	Assets       []AssetRow `json:"assets"`
	Weights      []float64  `json:"weights"`
	InitialValue float64    `json:"initialValue"`
}
