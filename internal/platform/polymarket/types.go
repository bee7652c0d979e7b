// Package polymarket contains the REST and WebSocket clients for the
// Polymarket Data API and CLOB API, plus the DTO conversions into domain
// types.
package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// flexFloat unmarshals from a JSON number or numeric string, since the Data
// API is inconsistent about how it encodes sizes and prices.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIActivity is one row of the Data API /activity response.
type APIActivity struct {
	ProxyWallet     string    `json:"proxyWallet"`
	User            string    `json:"user"`
	Timestamp       int64     `json:"timestamp"`
	Type            string    `json:"type"`
	Market          string    `json:"market"` // condition ID
	Asset           string    `json:"asset"`  // outcome token ID
	Outcome         string    `json:"outcome"`
	Side            string    `json:"side"`
	Size            flexFloat `json:"size"`
	Price           flexFloat `json:"price"`
	TransactionHash string    `json:"transactionHash"`
}

// Wallet returns the wallet that executed the activity, preferring the
// proxyWallet field over the legacy user field.
func (a *APIActivity) Wallet() string {
	if a.ProxyWallet != "" {
		return strings.ToLower(a.ProxyWallet)
	}
	return strings.ToLower(a.User)
}

// ToDomainTradeEvent converts an activity row into a domain.TradeEvent.
func (a *APIActivity) ToDomainTradeEvent() domain.TradeEvent {
	return domain.TradeEvent{
		TransactionHash: a.TransactionHash,
		Timestamp:       time.Unix(a.Timestamp, 0).UTC(),
		MarketID:        a.Market,
		TokenID:         a.Asset,
		Outcome:         a.Outcome,
		Side:            domain.Side(strings.ToUpper(a.Side)),
		Size:            float64(a.Size),
		Price:           float64(a.Price),
		Wallet:          a.Wallet(),
	}
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TransactID  string `json:"transactID,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// OrderResult is the domain-facing result of an order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
	Retry   bool
}

// ToOrderResult converts the API response.
func (r *APIOrderResult) ToOrderResult() OrderResult {
	return OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Status:  r.Status,
		Message: r.ErrorMsg,
		Retry:   r.ShouldRetry,
	}
}
