// Package binance implements market.Source against the Binance spot API
// using the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"zenith/internal/market"
	"zenith/internal/pkg/symbol"
	"zenith/internal/types"
)

const maxKlineLimit = 1000

// Config holds the REST client settings.
type Config struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Source talks to Binance spot over REST.
type Source struct {
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, final.APISecret)
	if base := strings.TrimSpace(final.BaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{client: client}
}

func (s *Source) FetchCandles(ctx context.Context, sym, timeframe string, limit int) ([]types.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair := symbol.Exchange(sym)
	if pair == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	if timeframe == "" {
		return nil, fmt.Errorf("timeframe is required")
	}
	kls, err := s.client.NewKlinesService().
		Symbol(pair).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]types.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		// The last kline is usually still forming; indicators only see
		// closed bars.
		if kl.CloseTime > now {
			continue
		}
		out = append(out, types.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) FetchPrice(ctx context.Context, sym string) (types.PriceQuote, error) {
	pair := symbol.Exchange(sym)
	prices, err := s.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return types.PriceQuote{}, err
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, pair) {
			continue
		}
		last := parseFloat(p.Price)
		if last <= 0 {
			return types.PriceQuote{}, fmt.Errorf("binance returned non-positive price %q for %s", p.Price, pair)
		}
		return types.PriceQuote{Symbol: pair, Last: last, At: time.Now().UTC()}, nil
	}
	return types.PriceQuote{}, fmt.Errorf("no ticker for %s", pair)
}

func (s *Source) FetchBalance(ctx context.Context, asset string) (float64, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	account, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range account.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.Free), nil
		}
	}
	return 0, nil
}

func (s *Source) PlaceMarketOrder(ctx context.Context, req market.OrderRequest) (types.OrderResult, error) {
	pair := symbol.Exchange(req.Symbol)
	svc := s.client.NewCreateOrderService().
		Symbol(pair).
		Type(binance.OrderTypeMarket)

	switch req.Side {
	case types.SignalBuy:
		if req.QuoteQuantity <= 0 {
			return types.OrderResult{}, fmt.Errorf("buy order for %s needs a positive quote quantity", pair)
		}
		svc = svc.Side(binance.SideTypeBuy).
			QuoteOrderQty(strconv.FormatFloat(req.QuoteQuantity, 'f', -1, 64))
	case types.SignalSell:
		if req.BaseQuantity <= 0 {
			return types.OrderResult{}, fmt.Errorf("sell order for %s needs a positive base quantity", pair)
		}
		svc = svc.Side(binance.SideTypeSell).
			Quantity(strconv.FormatFloat(req.BaseQuantity, 'f', -1, 64))
	default:
		return types.OrderResult{}, fmt.Errorf("unsupported order side %q", req.Side)
	}

	order, err := svc.Do(ctx)
	if err != nil {
		return types.OrderResult{}, err
	}

	executed := parseFloat(order.ExecutedQuantity)
	cumQuote := parseFloat(order.CummulativeQuoteQuantity)
	result := types.OrderResult{
		OrderID:  strconv.FormatInt(order.OrderID, 10),
		Price:    parseFloat(order.Price),
		Quantity: executed,
	}
	if executed > 0 && cumQuote > 0 {
		result.AvgFillPrice = cumQuote / executed
	}
	return result, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

var _ market.Source = (*Source)(nil)
