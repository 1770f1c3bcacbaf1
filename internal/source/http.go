package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/obs"
)

// parseFunc decodes a venue's raw JSON response body into a price and
// volume reading for one pair.
type parseFunc func(body []byte, venueSymbol string) (price, volume float64, err error)

// HTTPSource is a generic REST price adapter: build a URL for the venue's
// own symbol spelling, GET it, hand the body to a venue-specific parser.
// Every concrete venue in this package (OKX, Binance, Coinbase, Raydium,
// Orca) is a thin configuration of this type, mirroring how the teacher's
// exchange adapters share one HTTP/JSON fetch shape across venues.
type HTTPSource struct {
	name       string
	client     *http.Client
	urlFor     func(venueSymbol string) string
	symbolFor  map[string]string // canonical pair -> venue symbol
	parse      parseFunc
}

// NewHTTPSource builds an HTTPSource. symbolFor maps canonical pairs
// ("SOL/USDC") to the venue's own symbol spelling ("SOLUSDC" for Binance,
// "SOL-USDC" for OKX); a pair absent from the map is unsupported on this
// venue.
func NewHTTPSource(name string, timeout time.Duration, urlFor func(string) string, symbolFor map[string]string, parse parseFunc) *HTTPSource {
	return &HTTPSource{
		name:      name,
		client:    &http.Client{Timeout: timeout},
		urlFor:    urlFor,
		symbolFor: symbolFor,
		parse:     parse,
	}
}

// Name implements Source.
func (h *HTTPSource) Name() string { return h.name }

// Fetch implements Source.
func (h *HTTPSource) Fetch(ctx context.Context, pair string) (obs.Observation, error) {
	venueSymbol, ok := h.symbolFor[pair]
	if !ok {
		return obs.Observation{}, newAdapterError(aggregate.KindUnsupported, h.name, pair, fmt.Errorf("no symbol mapping for %s", pair))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.urlFor(venueSymbol), nil)
	if err != nil {
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, h.name, pair, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, h.name, pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, h.name, pair, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return obs.Observation{}, newAdapterError(aggregate.KindRateLimited, h.name, pair, fmt.Errorf("http %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, h.name, pair, fmt.Errorf("http %d: %s", resp.StatusCode, string(body)))
	}

	price, volume, err := h.parse(body, venueSymbol)
	if err != nil {
		return obs.Observation{}, newAdapterError(aggregate.KindParseError, h.name, pair, err)
	}

	return obs.Observation{
		Pair:      pair,
		Source:    h.name,
		Price:     price,
		Volume:    volume,
		Timestamp: time.Now(),
	}, nil
}

// parseStringFloat parses a JSON-number-as-string field, the format most
// exchange REST APIs use for price and volume to avoid float precision
// surprises on the wire.
func parseStringFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

type okxTickerResponse struct {
	Data []struct {
		Last   string `json:"last"`
		Vol24h string `json:"vol24h"`
	} `json:"data"`
}

// NewOKXSource builds the OKX spot ticker adapter, GET
// /api/v5/market/ticker?instId=<symbol>.
func NewOKXSource(timeout time.Duration, symbolFor map[string]string) *HTTPSource {
	return NewHTTPSource("okx", timeout,
		func(sym string) string {
			return fmt.Sprintf("https://www.okx.com/api/v5/market/ticker?instId=%s", sym)
		},
		symbolFor,
		func(body []byte, sym string) (float64, float64, error) {
			var r okxTickerResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			if len(r.Data) == 0 {
				return 0, 0, fmt.Errorf("empty ticker data for %s", sym)
			}
			price, err := parseStringFloat(r.Data[0].Last)
			if err != nil {
				return 0, 0, err
			}
			volume, err := parseStringFloat(r.Data[0].Vol24h)
			if err != nil {
				return 0, 0, err
			}
			return price, volume, nil
		})
}

type binanceTickerResponse struct {
	Price string `json:"price"`
}

type binance24hrResponse struct {
	Volume string `json:"volume"`
}

// NewBinanceSource builds the Binance spot ticker adapter, GET
// /api/v3/ticker/24hr?symbol=<symbol>, which reports both last price and
// 24h volume in one response.
func NewBinanceSource(timeout time.Duration, symbolFor map[string]string) *HTTPSource {
	return NewHTTPSource("binance", timeout,
		func(sym string) string {
			return fmt.Sprintf("https://api.binance.com/api/v3/ticker/24hr?symbol=%s", sym)
		},
		symbolFor,
		func(body []byte, sym string) (float64, float64, error) {
			var r struct {
				LastPrice string `json:"lastPrice"`
				Volume    string `json:"volume"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			price, err := parseStringFloat(r.LastPrice)
			if err != nil {
				return 0, 0, err
			}
			volume, err := parseStringFloat(r.Volume)
			if err != nil {
				return 0, 0, err
			}
			return price, volume, nil
		})
}

// NewCoinbaseSource builds the Coinbase Exchange ticker adapter, GET
// /products/<symbol>/ticker.
func NewCoinbaseSource(timeout time.Duration, symbolFor map[string]string) *HTTPSource {
	return NewHTTPSource("coinbase", timeout,
		func(sym string) string {
			return fmt.Sprintf("https://api.exchange.coinbase.com/products/%s/ticker", sym)
		},
		symbolFor,
		func(body []byte, sym string) (float64, float64, error) {
			var r struct {
				Price  string `json:"price"`
				Volume string `json:"volume"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			price, err := parseStringFloat(r.Price)
			if err != nil {
				return 0, 0, err
			}
			volume, err := parseStringFloat(r.Volume)
			if err != nil {
				return 0, 0, err
			}
			return price, volume, nil
		})
}
