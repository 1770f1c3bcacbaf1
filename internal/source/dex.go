package source

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewRaydiumSource builds the Raydium AMM price adapter, GET
// /mint/price?mints=<symbol> on the v3 API, where symbol is the mint address
// (supplied via token_mappings — Raydium has no symbol endpoint). Raydium's
// price endpoint does not return pool volume, so observations from this
// source carry zero volume and are excluded from VWAP by the engine's
// "positive volume required" rule; they still count toward TWAP and the
// source-weighted mean.
func NewRaydiumSource(timeout time.Duration, symbolFor map[string]string) *HTTPSource {
	return NewHTTPSource("raydium", timeout,
		func(mint string) string {
			return fmt.Sprintf("https://api-v3.raydium.io/mint/price?mints=%s", mint)
		},
		symbolFor,
		func(body []byte, mint string) (float64, float64, error) {
			var r struct {
				Data map[string]string `json:"data"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			priceStr, ok := r.Data[mint]
			if !ok {
				return 0, 0, fmt.Errorf("no price for mint %s", mint)
			}
			price, err := parseStringFloat(priceStr)
			if err != nil {
				return 0, 0, err
			}
			return price, 0, nil
		})
}

// NewOrcaSource builds the Orca Whirlpools price adapter, GET
// /v1/token/price?mint=<symbol>. Like Raydium, Orca's public price
// endpoint carries no volume figure.
func NewOrcaSource(timeout time.Duration, symbolFor map[string]string) *HTTPSource {
	return NewHTTPSource("orca", timeout,
		func(mint string) string {
			return fmt.Sprintf("https://api.orca.so/v1/token/price?mint=%s", mint)
		},
		symbolFor,
		func(body []byte, mint string) (float64, float64, error) {
			var r struct {
				Price float64 `json:"price"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return 0, 0, err
			}
			if r.Price <= 0 {
				return 0, 0, fmt.Errorf("non-positive price for mint %s", mint)
			}
			return r.Price, 0, nil
		})
}
