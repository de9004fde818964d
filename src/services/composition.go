package services

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintool-server/src/models"
	"fintool-server/src/vault"
)

const CashTicker = "CASH"

// Simulation inputs per asset class. They are placeholders, not estimates.
const (
	cashExpectedReturn   = 0.02
	cashVolatility       = 0.0001
	equityExpectedReturn = 0.07
	equityVolatility     = 0.20
)

type CompositionOptions struct {
	IncludeCash bool `json:"includeCash"`
}

type assetValue struct {
	row   models.AssetRow
	value decimal.Decimal
}

// ResolveComposition joins holdings to their securities and weights each
// surviving row by notional value. No usable rows yields an empty result.
func ResolveComposition(holdings []models.Holding, securities []models.Security, opts CompositionOptions) models.Composition {
	bySecurity := make(map[string]models.Security, len(securities))
	for _, sec := range securities {
		if sec.SecurityID == "" {
			continue
		}
		if _, ok := bySecurity[sec.SecurityID]; !ok {
			bySecurity[sec.SecurityID] = sec
		}
	}

	var assets []assetValue
	total := decimal.Zero
	for i, h := range holdings {
		sec, ok := bySecurity[h.SecurityID]
		if !ok {
			continue
		}

		price, ok := resolvePrice(h, sec)
		if !ok || !finitePositive(h.Quantity) {
			continue
		}

		symbol := strings.TrimSpace(sec.TickerSymbol)
		ticker := symbol
		cash := isCashLike(symbol)
		if cash {
			if !opts.IncludeCash {
				continue
			}
			ticker = CashTicker
		}

		value := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(h.Quantity))
		row := models.AssetRow{
			SecurityID:     sec.SecurityID,
			Name:           assetName(sec, symbol, i),
			Ticker:         ticker,
			Price:          price,
			Quantity:       h.Quantity,
			Value:          value.InexactFloat64(),
			ExpectedReturn: equityExpectedReturn,
			Volatility:     equityVolatility,
		}
		if cash {
			row.ExpectedReturn = cashExpectedReturn
			row.Volatility = cashVolatility
		}

		assets = append(assets, assetValue{row: row, value: value})
		total = total.Add(value)
	}

	if !total.IsPositive() || !finitePositive(total.InexactFloat64()) {
		return emptyComposition()
	}

	slices.SortStableFunc(assets, func(a, b assetValue) int {
		return b.value.Cmp(a.value)
	})

	out := models.Composition{
		Assets:       make([]models.AssetRow, 0, len(assets)),
		Weights:      make([]float64, 0, len(assets)),
		InitialValue: total.InexactFloat64(),
	}
	for _, a := range assets {
		weight := a.value.Div(total).InexactFloat64()
		a.row.Weight = weight
		out.Assets = append(out.Assets, a.row)
		out.Weights = append(out.Weights, weight)
	}
	return out
}

// resolvePrice takes the institution price when the feed reports one and
// the close price of the security otherwise. A reported price that is not
// positive drops the row; it does not fall through to the close price.
func resolvePrice(h models.Holding, sec models.Security) (float64, bool) {
	price := h.InstitutionPrice
	if price == nil {
		price = sec.ClosePrice
	}
	if price == nil || !finitePositive(*price) {
		return 0, false
	}
	return *price, true
}

// isCashLike reports rows without a ticker. A ticker always wins, so a
// money market fund typed as cash keeps its own symbol.
func isCashLike(symbol string) bool {
	return symbol == ""
}

func assetName(sec models.Security, symbol string, index int) string {
	if name := strings.TrimSpace(sec.Name); name != "" {
		return name
	}
	if symbol != "" {
		return symbol
	}
	return "Holding " + strconv.Itoa(index+1)
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func emptyComposition() models.Composition {
	return models.Composition{Assets: []models.AssetRow{}, Weights: []float64{}, InitialValue: 0}
}

// CompositionService resolves the composition of the cached holdings of a
// user. It never calls the upstream feed.
type CompositionService struct {
	store UserStore
	codec *vault.Codec
}

func NewCompositionService(store UserStore, codec *vault.Codec) *CompositionService {
	return &CompositionService{store: store, codec: codec}
}

func (s *CompositionService) Resolve(ctx context.Context, userID int64, opts CompositionOptions) (models.Composition, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.Composition{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	return ResolveComposition(user.Holdings(s.codec), user.Securities(s.codec), opts), nil
}
