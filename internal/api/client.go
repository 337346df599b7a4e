package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/auth"
)

// DefaultBaseURL is the production ISMR query tool API.
const DefaultBaseURL = "https://api-ismrquerytool.fct.unesp.br/api/v1"

// DefaultTokenTTL is assumed when the auth response carries no expiry.
const DefaultTokenTTL = 3 * time.Hour

// Common errors, one per status class the retry policy distinguishes.
var (
	ErrNoData       = errors.New("api: no data for interval")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrThrottled    = errors.New("api: rate limited")
	ErrMaintenance  = errors.New("api: service under maintenance")
)

// StatusError is returned for status codes with no dedicated sentinel.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status code %d", e.Code)
}

// Mode selects how the data endpoint delivers artifacts.
type Mode string

const (
	// ModeBundle: the endpoint returns a JSON bundle reference with a
	// temporary URL to fetch next. This is how the production API works.
	ModeBundle Mode = "bundle"

	// ModeDirect: the endpoint streams the artifact bytes directly.
	ModeDirect Mode = "direct"
)

// Options configures the API client.
type Options struct {
	// BaseURL of the API, without trailing slash.
	// Default: DefaultBaseURL
	BaseURL string

	// Mode selects bundle-reference or direct delivery.
	// Default: ModeBundle
	Mode Mode

	// Timeout for query and auth requests.
	// Default: 30s
	Timeout time.Duration

	// DownloadTimeout for artifact transfers, which can be large.
	// Default: 5m
	DownloadTimeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// InsecureTLS skips certificate verification. Some station networks
	// sit behind intercepting proxies with self-signed certificates.
	InsecureTLS bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:             DefaultBaseURL,
		Mode:                ModeBundle,
		Timeout:             30 * time.Second,
		DownloadTimeout:     5 * time.Minute,
		MaxIdleConnsPerHost: 16,
	}
}

// Query identifies one bounded data request.
type Query struct {
	Station  string
	DataType DataType
	Start    time.Time
	End      time.Time
}

// Bundle is a reference to a prepared archive, fetched in a second round
// trip from a temporary URL.
type Bundle struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Result is the outcome of a successful query. Exactly one of Bundle or
// Body is set, depending on the client mode. When Body is set the caller
// owns closing it.
type Result struct {
	Bundle   *Bundle
	Body     io.ReadCloser
	Filename string
	Size     int64
}

// Client talks to the ISMR query tool API.
type Client struct {
	client   *http.Client
	download *http.Client
	opts     Options
}

// NewClient creates an API client with the given options.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.DownloadTimeout == 0 {
		opts.DownloadTimeout = def.DownloadTimeout
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		download: &http.Client{
			Transport: transport,
			Timeout:   opts.DownloadTimeout,
		},
		opts: opts,
	}
}

// Credentials for the email/password exchange.
type Credentials struct {
	Email    string
	Password string
}

// AuthFunc adapts the client's credential exchange to the token store.
func (c *Client) AuthFunc(creds Credentials) auth.AuthFunc {
	return func(ctx context.Context) (auth.Token, error) {
		return c.Authenticate(ctx, creds)
	}
}

// Authenticate exchanges credentials for a bearer token. When the server
// omits an expiry, DefaultTokenTTL is assumed.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (auth.Token, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		return auth.Token{}, fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/user/token", bytes.NewReader(payload))
	if err != nil {
		return auth.Token{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return auth.Token{}, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return auth.Token{}, fmt.Errorf("auth request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return auth.Token{}, fmt.Errorf("decode auth response: %w", err)
	}
	if body.AccessToken == "" {
		return auth.Token{}, errors.New("auth response missing access_token")
	}

	now := time.Now().UTC()
	tok := auth.Token{
		Value:     body.AccessToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(DefaultTokenTTL),
	}
	if body.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, body.ExpiresAt); err == nil {
			tok.ExpiresAt = exp.UTC()
		}
	}
	return tok, nil
}

// Do performs one data query. The bearer token authenticates the request;
// rangeStart/rangeEnd are sent as ISO timestamps. Status codes map to the
// package sentinels so the retry policy can classify them.
func (c *Client) Do(ctx context.Context, token string, q Query) (*Result, error) {
	u, err := url.Parse(fmt.Sprintf("%s/data/download/%s", c.opts.BaseURL, q.DataType))
	if err != nil {
		return nil, fmt.Errorf("build query url: %w", err)
	}
	params := url.Values{}
	params.Set("station", q.Station)
	params.Set("start", q.Start.UTC().Format("2006-01-02T15:04:05"))
	params.Set("end", q.End.UTC().Format("2006-01-02T15:04:05"))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := c.client
	if c.opts.Mode == ModeDirect {
		client = c.download
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", q.Station, q.DataType, err)
	}

	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if c.opts.Mode == ModeDirect {
		return &Result{
			Body:     resp.Body,
			Filename: filenameFromHeader(resp.Header),
			Size:     resp.ContentLength,
		}, nil
	}
	defer resp.Body.Close()

	var body struct {
		Bundle *Bundle `json:"bundle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	// The API signals an empty interval with a missing bundle.
	if body.Bundle == nil || body.Bundle.URL == "" {
		return nil, ErrNoData
	}
	return &Result{Bundle: body.Bundle, Filename: body.Bundle.Filename}, nil
}

// FetchBundle streams a prepared archive from its temporary URL. Bundle
// URLs are pre-signed; no bearer token is attached.
func (c *Client) FetchBundle(ctx context.Context, bundleURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bundleURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch bundle: %w", err)
	}
	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// checkStatusCode maps non-success status codes to package errors.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNoData
	case code == http.StatusTooManyRequests:
		return ErrThrottled
	case code == http.StatusServiceUnavailable:
		return ErrMaintenance
	default:
		return &StatusError{Code: code}
	}
}

// filenameFromHeader extracts the artifact name from Content-Disposition.
func filenameFromHeader(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		return params["filename"]
	}
	return ""
}
