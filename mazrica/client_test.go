package mazrica

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Errorf("New(\"\") should fail")
	}
	if _, err := New("key"); err != nil {
		t.Errorf("New with a key failed: %v", err)
	}
}

func TestClient_SendsAPIKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, `{"dealTypes":[{"id":1,"name":"新規"}]}`)
	}))
	defer server.Close()

	client, err := New("secret-key", WithBaseURL(server.URL), WithRateInterval(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	types, err := client.GetDealTypes(context.Background())
	if err != nil {
		t.Fatalf("GetDealTypes: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	if len(types) != 1 || types[0].Name != "新規" {
		t.Errorf("deal types = %v", types)
	}
}

func TestClient_GetDealsParams(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, `{"deals":[],"totalCount":0,"page":1}`)
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0))
	if _, err := client.GetDeals(context.Background(), 9, 2, 50); err != nil {
		t.Fatalf("GetDeals: %v", err)
	}

	want := map[string]string{"page": "2", "limit": "50", "sort": "-updatedAt", "dealTypeId": "9"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestClient_FetchDealsWithProducts_Paginates(t *testing.T) {
	// totalCount 3 at page size 2 means two requests.
	pages := map[string]string{
		"1": `{"deals":[{"id":1,"name":"a"},{"id":2,"name":"b"}],"totalCount":3,"page":1}`,
		"2": `{"deals":[{"id":3,"name":"c","productDetails":[{"productName":"p","quantity":2}]}],"totalCount":3,"page":2}`,
	}
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0), WithPageSize(2))
	deals, err := client.FetchDealsWithProducts(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchDealsWithProducts: %v", err)
	}

	if requests != 2 {
		t.Errorf("made %d requests, want 2", requests)
	}
	if len(deals) != 3 {
		t.Fatalf("got %d deals, want 3", len(deals))
	}
	if deals[2].ID != 3 || len(deals[2].ProductDetails) != 1 {
		t.Errorf("last deal = %+v", deals[2])
	}
	if q := deals[2].ProductDetails[0].Quantity; q == nil || *q != 2 {
		t.Errorf("line item quantity = %v, want 2", q)
	}
}

func TestClient_FetchDealsWithProducts_StopsOnEmptyPage(t *testing.T) {
	// A lying totalCount must not loop forever.
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"deals":[{"id":1,"name":"a"}],"totalCount":100,"page":1}`)
			return
		}
		fmt.Fprint(w, `{"deals":[],"totalCount":100,"page":2}`)
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0), WithPageSize(1))
	deals, err := client.FetchDealsWithProducts(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchDealsWithProducts: %v", err)
	}
	if len(deals) != 1 || requests != 2 {
		t.Errorf("got %d deals over %d requests, want 1 over 2", len(deals), requests)
	}
}

func TestClient_RetriesOn429(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"deals":[],"totalCount":0,"page":1}`)
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0))
	if _, err := client.GetDeals(context.Background(), 0, 1, 10); err != nil {
		t.Fatalf("GetDeals after 429 retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("made %d attempts, want 2", attempts)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "internal error")
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0))
	_, err := client.GetDeals(context.Background(), 0, 1, 10)
	if err == nil {
		t.Fatalf("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "internal error" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"deals":[],"totalCount":0,"page":1}`)
	}))
	defer server.Close()

	client, _ := New("key", WithBaseURL(server.URL), WithRateInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetDeals(ctx, 0, 1, 10); err == nil {
		t.Errorf("cancelled context should surface an error")
	}
}
