package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(server *httptest.Server, mode Mode) *Client {
	opts := DefaultOptions()
	opts.BaseURL = server.URL
	opts.Mode = mode
	return NewClient(opts)
}

func TestAuthenticate(t *testing.T) {
	expiry := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/user/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds["email"] != "user@example.com" || creds["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-1",
			"expires_at":   expiry.Format(time.RFC3339),
		})
	}))
	defer server.Close()

	client := testClient(server, ModeBundle)
	tok, err := client.Authenticate(context.Background(), Credentials{
		Email:    "user@example.com",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.Value != "tok-1" {
		t.Errorf("token value = %q, want tok-1", tok.Value)
	}
	if !tok.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", tok.ExpiresAt, expiry)
	}
}

func TestAuthenticateTTLFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-2"})
	}))
	defer server.Close()

	client := testClient(server, ModeBundle)
	before := time.Now()
	tok, err := client.Authenticate(context.Background(), Credentials{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	want := before.Add(DefaultTokenTTL)
	if tok.ExpiresAt.Before(want) || tok.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expiry = %v, want about %v", tok.ExpiresAt, want)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server, ModeBundle)
	if _, err := client.Authenticate(context.Background(), Credentials{}); err == nil {
		t.Error("expected error for rejected credentials")
	}
}

func TestDoBundle(t *testing.T) {
	var bundleURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/data/download/ismr", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("station") != "PRU2" {
			t.Errorf("station = %q", q.Get("station"))
		}
		if q.Get("start") != "2025-01-01T00:00:00" || q.Get("end") != "2025-01-15T23:59:59" {
			t.Errorf("range = %q .. %q", q.Get("start"), q.Get("end"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bundle": map[string]string{"url": bundleURL, "filename": "PRU2_ismr.zip"},
		})
	})
	mux.HandleFunc("/bundles/PRU2_ismr.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bundle-bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	bundleURL = server.URL + "/bundles/PRU2_ismr.zip"

	client := testClient(server, ModeBundle)
	res, err := client.Do(context.Background(), "tok-1", Query{
		Station:  "PRU2",
		DataType: DataISMR,
		Start:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 15, 23, 59, 59, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Bundle == nil || res.Bundle.Filename != "PRU2_ismr.zip" {
		t.Fatalf("unexpected result: %+v", res)
	}

	body, _, err := client.FetchBundle(context.Background(), res.Bundle.URL)
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	if string(data) != "bundle-bytes" {
		t.Errorf("bundle content = %q", data)
	}
}

func TestDoDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="PRU2.sbf"`)
		w.Write([]byte("raw-sbf"))
	}))
	defer server.Close()

	client := testClient(server, ModeDirect)
	res, err := client.Do(context.Background(), "tok-1", Query{Station: "PRU2", DataType: DataSBF})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer res.Body.Close()

	if res.Filename != "PRU2.sbf" {
		t.Errorf("filename = %q", res.Filename)
	}
	data, _ := io.ReadAll(res.Body)
	if string(data) != "raw-sbf" {
		t.Errorf("body = %q", data)
	}
}

func TestDoStatusErrors(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, ErrNoData},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrThrottled},
		{http.StatusServiceUnavailable, ErrMaintenance},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			client := testClient(server, ModeBundle)
			_, err := client.Do(context.Background(), "tok", Query{Station: "X", DataType: DataISMR})
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: got %v, want %v", tt.code, err, tt.want)
			}
		})
	}
}

func TestDoEmptyBundleIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"bundle": nil})
	}))
	defer server.Close()

	client := testClient(server, ModeBundle)
	_, err := client.Do(context.Background(), "tok", Query{Station: "X", DataType: DataISMR})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("got %v, want ErrNoData", err)
	}
}

func TestDoUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(server, ModeBundle)
	_, err := client.Do(context.Background(), "tok", Query{Station: "X", DataType: DataISMR})

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Errorf("got %v, want StatusError{502}", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"no data", ErrNoData, StatusNoData},
		{"wrapped no data", fmt.Errorf("query: %w", ErrNoData), StatusNoData},
		{"unauthorized", ErrUnauthorized, StatusUnauthorized},
		{"throttled", ErrThrottled, StatusThrottled},
		{"maintenance", ErrMaintenance, StatusMaintenance},
		{"deadline", context.DeadlineExceeded, StatusTimeout},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), StatusTimeout},
		{"status 500", &StatusError{Code: 500}, StatusFatal},
		{"plain error", errors.New("boom"), StatusFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.BaseURL = server.URL
	opts.Timeout = 20 * time.Millisecond
	client := NewClient(opts)

	_, err := client.Do(context.Background(), "tok", Query{Station: "X", DataType: DataISMR})
	if got := Classify(err); got != StatusTimeout {
		t.Errorf("Classify(%v) = %v, want StatusTimeout", err, got)
	}
}

func TestParseDataType(t *testing.T) {
	for _, s := range []string{"ismr", "ismr1min", "sbf", "rinex"} {
		if _, err := ParseDataType(s); err != nil {
			t.Errorf("ParseDataType(%q): %v", s, err)
		}
	}
	if _, err := ParseDataType("csv"); err == nil {
		t.Error("expected error for unknown data type")
	}
}
