// Package testutil provides shared test fixtures, chiefly a programmable
// fake of the GitHub REST API for client and pipeline tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"sync"
	"time"
)

// FakeGitHub is an httptest-backed stand-in for the GitHub REST API.
// Routes map request paths to canned payloads; slice payloads are served
// paginated the way the real API pages listings.
type FakeGitHub struct {
	server   *httptest.Server
	mu       sync.Mutex
	payloads map[string]any
	statuses map[string]int
	requests []string

	rateRemaining int
	rateLimit     int
	rateReset     time.Time
}

// NewFakeGitHub starts a fake API server with a healthy rate budget.
// Callers must Close it.
func NewFakeGitHub() *FakeGitHub {
	f := &FakeGitHub{
		payloads:      make(map[string]any),
		statuses:      make(map[string]int),
		rateRemaining: 5000,
		rateLimit:     5000,
		rateReset:     time.Now().Add(time.Hour),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// URL returns the base URL to point a client at.
func (f *FakeGitHub) URL() string { return f.server.URL }

// Close shuts the server down.
func (f *FakeGitHub) Close() { f.server.Close() }

// Handle registers a payload for a request path (query string ignored).
func (f *FakeGitHub) Handle(path string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[path] = payload
}

// HandleStatus makes a path answer with a bare status code.
func (f *FakeGitHub) HandleStatus(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[path] = code
}

// SetRateBudget overrides the rate headers sent with every response.
func (f *FakeGitHub) SetRateBudget(remaining, limit int, reset time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateRemaining = remaining
	f.rateLimit = limit
	f.rateReset = reset
}

// Requests returns the request paths seen so far, in order.
func (f *FakeGitHub) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(f.rateRemaining))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(f.rateLimit))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(f.rateReset.Unix(), 10))
	code, hasStatus := f.statuses[r.URL.Path]
	payload, hasPayload := f.payloads[r.URL.Path]
	f.mu.Unlock()

	if hasStatus {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"message":%q}`, http.StatusText(code))
		return
	}
	if !hasPayload {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
		return
	}

	payload = paginate(payload, r)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// paginate slices list payloads according to page/per_page query params,
// mirroring the real API's short-final-page behavior.
func paginate(payload any, r *http.Request) any {
	v := reflect.ValueOf(payload)
	if v.Kind() != reflect.Slice {
		return payload
	}

	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		return payload
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	start := (page - 1) * perPage
	if start >= v.Len() {
		return v.Slice(0, 0).Interface()
	}
	end := start + perPage
	if end > v.Len() {
		end = v.Len()
	}
	return v.Slice(start, end).Interface()
}
