package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketstore/config"
)

const dailyCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2026-01-05,100.00,102.00,99.00,101.00,50.50,1000
2026-01-06,null,null,null,null,null,null
2026-01-07,101.00,103.00,100.00,102.00,102.00,2000
`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Reader.Timeout = 5 * time.Second
	cfg.Reader.RateLimit.RequestsPerSecond = 100
	cfg.Reader.RateLimit.BurstSize = 10
	return NewClient(cfg, nil).WithBaseURL(srv.URL)
}

func TestDaily(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v7/finance/download/AAPL") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, dailyCSV)
	}))

	got, err := client.Daily(context.Background(), []string{"AAPL"}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	// The halted "null" session is skipped.
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}
	if got.Value(0, "symbol") != "AAPL" {
		t.Errorf("symbol = %v", got.Value(0, "symbol"))
	}

	// First row: adj close 50.50 vs close 101.00, ratio 2, so every
	// price halves and close takes the adjusted value.
	if got.Value(0, "open") != 50.0 {
		t.Errorf("adjusted open = %v, want 50", got.Value(0, "open"))
	}
	if got.Value(0, "close") != 50.5 {
		t.Errorf("adjusted close = %v, want 50.5", got.Value(0, "close"))
	}
	if got.Value(0, "volume") != 1000.0 {
		t.Errorf("volume = %v", got.Value(0, "volume"))
	}

	// Second row needs no adjustment.
	if got.Value(1, "open") != 101.0 || got.Value(1, "close") != 102.0 {
		t.Errorf("unadjusted row = %v / %v", got.Value(1, "open"), got.Value(1, "close"))
	}
}

func TestDailyMergesSymbolsSorted(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "MSFT") {
			fmt.Fprint(w, "Date,Open,High,Low,Close,Adj Close,Volume\n2026-01-06,10,11,9,10,10,500\n")
			return
		}
		fmt.Fprint(w, "Date,Open,High,Low,Close,Adj Close,Volume\n2026-01-05,1,2,1,2,2,100\n2026-01-07,2,3,2,3,3,200\n")
	}))

	got, err := client.Daily(context.Background(), []string{"AAPL", "MSFT"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("rows = %d, want 3", got.Len())
	}
	wantOrder := []string{"AAPL", "MSFT", "AAPL"}
	for i, sym := range wantOrder {
		if got.Value(i, "symbol") != sym {
			t.Errorf("row %d symbol = %v, want %s", i, got.Value(i, "symbol"), sym)
		}
	}
}

func TestDailyErrorStatus(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	if _, err := client.Daily(context.Background(), []string{"NOPE"}, time.Time{}, time.Time{}); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestDailyMissingColumn(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n2026-01-05,1,2,1,2,100\n")
	}))

	_, err := client.Daily(context.Background(), []string{"AAPL"}, time.Time{}, time.Time{})
	if err == nil || !strings.Contains(err.Error(), "Adj Close") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestIntraday(t *testing.T) {
	payload := `{"chart":{"result":[{"timestamp":[1767625800,1767625860,1767625920],
		"indicators":{"quote":[{
			"open":[100.111,null,100.3],
			"high":[100.5,null,100.6],
			"low":[99.9,null,100.1],
			"close":[100.2,null,100.4],
			"volume":[500,null,600]}]}}],"error":null}}`

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/AAPL") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("range") != "5d" {
			t.Errorf("range = %s", r.URL.Query().Get("range"))
		}
		fmt.Fprint(w, payload)
	}))

	got, err := client.Intraday(context.Background(), "AAPL", "")
	if err != nil {
		t.Fatalf("Intraday: %v", err)
	}
	// Minute with a null close is dropped.
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}
	if got.Value(0, "open") != 100.11 {
		t.Errorf("open not rounded: %v", got.Value(0, "open"))
	}
	if _, offset := got.Time(0).Zone(); offset != 0 {
		t.Errorf("index not UTC")
	}
}

func TestIntradayShortQuoteArrays(t *testing.T) {
	// The in-progress bar appears in the timestamp list before its
	// quote entries exist; the trailing timestamp must be ignored.
	payload := `{"chart":{"result":[{"timestamp":[1767625800,1767625860],
		"indicators":{"quote":[{
			"open":[100.1],
			"high":[100.5],
			"low":[99.9],
			"close":[100.2],
			"volume":[500]}]}}],"error":null}}`

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))

	got, err := client.Intraday(context.Background(), "AAPL", "1d")
	if err != nil {
		t.Fatalf("Intraday: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("rows = %d, want 1", got.Len())
	}
	if got.Value(0, "close") != 100.2 {
		t.Errorf("close = %v", got.Value(0, "close"))
	}
}

func TestIntradayChartError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))

	_, err := client.Intraday(context.Background(), "NOPE", "1d")
	if err == nil || !strings.Contains(err.Error(), "No data found") {
		t.Fatalf("expected chart error, got %v", err)
	}
}
