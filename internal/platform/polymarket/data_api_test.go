package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

func TestGetTradeActivityQueryAndFiltering(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"user":          q.Get("user"),
			"type":          q.Get("type"),
			"sortBy":        q.Get("sortBy"),
			"sortDirection": q.Get("sortDirection"),
			"start":         q.Get("start"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"proxyWallet":"0xTarget","timestamp":100,"type":"TRADE","market":"m1","asset":"a1","outcome":"Yes","side":"BUY","size":10,"price":0.5,"transactionHash":"0x1"},
			{"proxyWallet":"0xother","timestamp":101,"type":"TRADE","market":"m1","asset":"a1","outcome":"Yes","side":"BUY","size":10,"price":0.5,"transactionHash":"0x2"},
			{"proxyWallet":"0xtarget","timestamp":102,"type":"REDEEM","market":"m1","asset":"a1","outcome":"Yes","side":"BUY","size":10,"price":0.5,"transactionHash":"0x3"},
			{"proxyWallet":"0xtarget","timestamp":103,"type":"TRADE","market":"m1","asset":"a1","outcome":"Yes","side":"SELL","size":5,"price":0.6,"transactionHash":""}
		]`))
	}))
	defer srv.Close()

	c := NewDataAPIClient(srv.URL)
	since := time.Unix(50, 0)

	events, err := c.GetTradeActivity(context.Background(), "0xTarget", since)
	require.NoError(t, err)

	assert.Equal(t, "0xtarget", gotQuery["user"])
	assert.Equal(t, "TRADE", gotQuery["type"])
	assert.Equal(t, "TIMESTAMP", gotQuery["sortBy"])
	assert.Equal(t, "DESC", gotQuery["sortDirection"])
	assert.Equal(t, "50", gotQuery["start"])

	// Foreign wallets, non-trade rows, and rows without a transaction hash
	// are dropped.
	require.Len(t, events, 1)
	assert.Equal(t, "0x1", events[0].TransactionHash)
	assert.Equal(t, domain.SideBuy, events[0].Side)
}

func TestGetTradeActivityRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDataAPIClient(srv.URL).GetTradeActivity(context.Background(), "0xtarget", time.Unix(0, 0))
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetTradeActivityServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewDataAPIClient(srv.URL).GetTradeActivity(context.Background(), "0xtarget", time.Unix(0, 0))
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrRateLimited)
}
