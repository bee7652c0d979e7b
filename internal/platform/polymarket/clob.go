package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/copytracker/internal/crypto"
)

// ClobClient is the REST client for the Polymarket CLOB API, used for
// placing the mirroring copy orders.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a CLOB client.
//
// baseURL is the CLOB root, e.g. "https://clob.polymarket.com". signer signs
// orders; hmac authenticates requests after the API key has been derived.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// PostOrder signs and submits an order, returning the CLOB's verdict. A
// response with success=false is returned alongside an error so the caller
// can inspect the status.
func (c *ClobClient) PostOrder(ctx context.Context, payload crypto.OrderPayload, orderType string) (OrderResult, error) {
	signature, err := c.signer.SignOrder(payload)
	if err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenId":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          sideName(payload.Side),
			"signatureType": payload.SignatureType,
			"signature":     signature,
		},
		"owner":     c.hmacAuth.Key,
		"orderType": orderType,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(raw))
	if err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.hmacAuth.L2Headers(c.signer.Address().Hex(), http.MethodPost, "/order", string(raw)) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: read response: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return OrderResult{}, fmt.Errorf("polymarket/clob: decode order result (status %d): %w",
			resp.StatusCode, err)
	}

	result := apiResult.ToOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %s", result.Message)
	}
	return result, nil
}

func sideName(side int) string {
	if side == 1 {
		return "SELL"
	}
	return "BUY"
}
