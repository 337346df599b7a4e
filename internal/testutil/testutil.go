// Package testutil provides a scripted fake of the ISMR query API for
// tests: a token endpoint, a data endpoint with per-request status
// scripts, and a bundle endpoint serving canned bytes.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Server is a fake ISMR query API.
//
// The data endpoint consults Script: each request pops the next status
// code; an empty or exhausted script answers 200 with a bundle
// reference. Status 200 entries in the script also answer with a bundle.
type Server struct {
	*httptest.Server

	// Email and Password accepted by the token endpoint.
	Email    string
	Password string

	// TokenTTL controls the expiry on issued tokens. Default: 3h.
	TokenTTL time.Duration

	// BundleData is served for every bundle fetch.
	BundleData []byte

	mu           sync.Mutex
	script       []int
	authCalls    int
	queryCalls   int
	bundleCalls  int
	tokenCounter int
	queryTimes   []time.Time
}

// NewServer starts a fake API accepting the given credentials.
func NewServer(email, password string) *Server {
	s := &Server{
		Email:      email,
		Password:   password,
		TokenTTL:   3 * time.Hour,
		BundleData: []byte("scintillation-data"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/token", s.handleToken)
	mux.HandleFunc("GET /data/download/", s.handleQuery)
	mux.HandleFunc("GET /bundles/", s.handleBundle)
	s.Server = httptest.NewServer(mux)
	return s
}

// Script queues status codes for upcoming data requests, consumed in
// order. Use 200 for a successful bundle response.
func (s *Server) Script(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, codes...)
}

// AuthCalls returns how many token exchanges the server has seen.
func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// QueryCalls returns how many data requests the server has seen.
func (s *Server) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// BundleCalls returns how many bundle fetches the server has seen.
func (s *Server) BundleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundleCalls
}

// QueryTimes returns the arrival time of every data request, for rate
// assertions.
func (s *Server) QueryTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.queryTimes...)
}

// CurrentToken returns the most recently issued token value.
func (s *Server) CurrentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("fake-token-%d", s.tokenCounter)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.authCalls++
	if creds["email"] != s.Email || creds["password"] != s.Password {
		s.mu.Unlock()
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.tokenCounter++
	token := fmt.Sprintf("fake-token-%d", s.tokenCounter)
	ttl := s.TokenTTL
	s.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"expires_at":   time.Now().UTC().Add(ttl).Format(time.RFC3339),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queryCalls++
	s.queryTimes = append(s.queryTimes, time.Now())
	code := http.StatusOK
	if len(s.script) > 0 {
		code = s.script[0]
		s.script = s.script[1:]
	}
	valid := r.Header.Get("Authorization") == "Bearer "+fmt.Sprintf("fake-token-%d", s.tokenCounter)
	s.mu.Unlock()

	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if code != http.StatusOK {
		w.WriteHeader(code)
		return
	}

	q := r.URL.Query()
	filename := fmt.Sprintf("%s_%s.zip", q.Get("station"), q.Get("start"))
	json.NewEncoder(w).Encode(map[string]any{
		"bundle": map[string]string{
			"url":      s.URL + "/bundles/" + filename,
			"filename": filename,
		},
	})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.bundleCalls++
	data := s.BundleData
	s.mu.Unlock()
	w.Write(data)
}
