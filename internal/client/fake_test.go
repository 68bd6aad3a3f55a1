package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeAPI is a minimal tenantgate server that hands out numbered access
// tokens and accepts only the latest one.
type fakeAPI struct {
	server *httptest.Server

	mu           sync.Mutex
	access       string
	issued       int
	refreshToken string
	refreshFails bool
	logoutFails  bool
	alwaysReject bool
	loggedOut    []string

	refreshCalls atomic.Int32
	rejected     atomic.Int32
	requests     atomic.Int32

	// refreshGate, when set, runs inside the refresh handler before it answers.
	refreshGate func()
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{refreshToken: "refresh-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", f.login)
	mux.HandleFunc("POST /auth/refresh", f.refresh)
	mux.HandleFunc("POST /auth/logout", f.logout)
	mux.HandleFunc("GET /auth/me", f.guard(f.me))
	mux.HandleFunc("GET /apps", f.guard(f.listApps))
	mux.HandleFunc("POST /users/me/avatar", f.guard(f.avatar))
	mux.HandleFunc("DELETE /tenants/{id}", f.guard(f.deleteTenant))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"status": "healthy", "version": "test", "database": map[string]bool{"connected": true}})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// issue hands out a new access token and invalidates the previous one.
func (f *fakeAPI) issue() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	f.access = fmt.Sprintf("access-%d", f.issued)
	return f.access
}

// configure mutates the fake under its lock.
func (f *fakeAPI) configure(fn func(f *fakeAPI)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

// expire invalidates the current access token without issuing a new one.
func (f *fakeAPI) expire() {
	f.mu.Lock()
	f.access = "expired"
	f.mu.Unlock()
}

func (f *fakeAPI) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.mu.Lock()
		ok := !f.alwaysReject && r.Header.Get("Authorization") == "Bearer "+f.access
		f.mu.Unlock()
		if !ok {
			f.rejected.Add(1)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "bad json")
		return
	}
	if body.Password != "secret" {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	access := f.issue()
	f.mu.Lock()
	refresh := f.refreshToken
	f.mu.Unlock()
	writeData(w, http.StatusOK, map[string]string{"token": access, "refreshToken": refresh})
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	gate := f.refreshGate
	f.mu.Unlock()
	if gate != nil {
		gate()
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	fails := f.refreshFails || body.RefreshToken != f.refreshToken
	f.mu.Unlock()
	if fails {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"token": f.issue()})
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.loggedOut = append(f.loggedOut, body.RefreshToken)
	fails := f.logoutFails
	f.mu.Unlock()
	if fails {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *fakeAPI) me(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"id":        "7d4e0a52-2a8d-4a43-9b6b-2f0a3c1d9e10",
		"email":     "ada@example.com",
		"role":      "user",
		"tenantId":  nil,
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"createdAt": "2026-01-01T00:00:00Z",
	})
}

func (f *fakeAPI) listApps(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, []map[string]any{
		{"id": "a1", "name": "Billing", "tenantId": nil, "description": r.URL.Query().Get("scope"), "createdAt": "2026-01-01T00:00:00Z"},
	})
}

func (f *fakeAPI) avatar(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "NO_FILE", "No file")
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)
	writeData(w, http.StatusOK, map[string]string{"avatarUrl": "/uploads/" + header.Filename + "?" + string(content)})
}

func (f *fakeAPI) deleteTenant(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") == "busy" {
		writeErrorDetails(w, http.StatusConflict, "TENANT_IN_USE", "Tenant still has users or applications", []map[string]string{{"field": "id", "message": "in use"}})
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *fakeAPI) loggedOutTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loggedOut...)
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":  data,
		"error": nil,
		"meta":  map[string]string{"requestId": "req-1", "timestamp": "2026-01-01T00:00:00Z"},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	e := map[string]any{"code": code, "message": message}
	if details != nil {
		e["details"] = details
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data":  nil,
		"error": e,
		"meta":  map[string]string{"requestId": "req-err", "timestamp": "2026-01-01T00:00:00Z"},
	})
}

// signalQueue is a RefreshQueue that reports every push.
type signalQueue struct {
	SliceQueue
	pushed chan struct{}
}

func newSignalQueue() *signalQueue {
	return &signalQueue{pushed: make(chan struct{}, 16)}
}

func (q *signalQueue) Push(w Waiter) {
	q.SliceQueue.Push(w)
	q.pushed <- struct{}{}
}
