// Package market reads klines and 24h tickers from a Binance-compatible REST API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("market: endpoint not found")

// klineCloseIndex is the position of the close price in a Binance kline row:
// [openTime, open, high, low, close, volume, ...]
const klineCloseIndex = 4

// Ticker is a normalized 24h ticker row.
type Ticker struct {
	Symbol        string
	LastPrice     float64
	ChangePercent float64
	Volume        float64
	High          float64
	Low           float64
}

// Source is what the price engine needs from a market data provider.
type Source interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
	Tickers(ctx context.Context, symbols []string) ([]Ticker, error)
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries each base URL in order and returns the first success.
// Usually that is a local proxy followed by the public API.
type Client struct {
	logger *zap.Logger
	http   HTTPDoer
	bases  []string
}

var _ Source = (*Client)(nil)

func NewClient(logger *zap.Logger, doer HTTPDoer, primary string, fallbacks ...string) *Client {
	bases := make([]string, 0, 1+len(fallbacks))
	for _, b := range append([]string{primary}, fallbacks...) {
		if b != "" {
			bases = append(bases, b)
		}
	}
	return &Client{logger: logger, http: doer, bases: bases}
}

// NewHTTPClient returns a client with sane transport timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type tickerDTO struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// Klines returns the close prices of the most recent candles, oldest first.
// Rows whose close cannot be parsed are skipped.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/klines", q, &rows); err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) <= klineCloseIndex {
			continue
		}
		v, ok := parseNumber(row[klineCloseIndex])
		if !ok {
			continue
		}
		closes = append(closes, v)
	}
	return closes, nil
}

// Tickers returns the 24h ticker for the requested symbols. Symbols the API
// omits are simply absent from the result.
func (c *Client) Tickers(ctx context.Context, symbols []string) ([]Ticker, error) {
	list, err := json.Marshal(symbols)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("symbols", string(list))

	var rows []tickerDTO
	if err := c.get(ctx, "/ticker/24hr", q, &rows); err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}

	out := make([]Ticker, 0, len(rows))
	for _, r := range rows {
		t, ok := normalizeTicker(r)
		if !ok {
			c.logger.Debug("Skipping malformed ticker", zap.String("symbol", r.Symbol))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dst any) error {
	if len(c.bases) == 0 {
		return errors.New("no market endpoints configured")
	}

	var lastErr error
	for i, base := range c.bases {
		err := c.getOnce(ctx, base+endpoint+"?"+q.Encode(), dst)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if i == len(c.bases)-1 {
			break
		}
		// a missing proxy is the normal dev setup; anything else is worth a warning
		if errors.Is(err, ErrNotFound) {
			c.logger.Debug("Proxy not available, falling back", zap.String("base", base))
		} else {
			c.logger.Warn("Market endpoint failed, falling back", zap.String("base", base), zap.Error(err))
		}
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalizeTicker(r tickerDTO) (Ticker, bool) {
	price, ok := parseDecimal(r.LastPrice)
	if !ok || r.Symbol == "" {
		return Ticker{}, false
	}
	t := Ticker{Symbol: r.Symbol, LastPrice: price}
	t.ChangePercent, _ = parseDecimal(r.PriceChangePercent)
	t.Volume, _ = parseDecimal(r.Volume)
	t.High, _ = parseDecimal(r.HighPrice)
	t.Low, _ = parseDecimal(r.LowPrice)
	return t, true
}

// parseNumber accepts both quoted decimals (Binance's format) and bare JSON numbers.
func parseNumber(raw json.RawMessage) (float64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseDecimal(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || string(raw) == "null" {
		return 0, false
	}
	return f, true
}

func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
