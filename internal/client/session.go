// Package client is the Go client for the tenantgate API. A Session owns the
// token lifecycle: it attaches the access token to every call, refreshes it
// once on a 401 and replays the failed request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// State is the lifecycle position of a Session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds configuration for creating a Session.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Store persists tokens. If nil, a MemoryStore is used.
	Store TokenStore
	// Queue holds callers waiting on an in-flight refresh. If nil, a SliceQueue is used.
	Queue RefreshQueue
	// OnLogout is called after a failed refresh has cleared the session.
	OnLogout func()
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Session is a stateful API client. It is safe for concurrent use.
type Session struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	queue      RefreshQueue
	onLogout   func()
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	tokens Tokens
	// gen changes whenever the session is replaced by a login or logout. A
	// refresh that started under an older gen must not write its result.
	gen uint64
}

// New creates a Session. Tokens already in the store resume an
// authenticated session.
func New(cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	s := &Session{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		store:      cfg.Store,
		queue:      cfg.Queue,
		onLogout:   cfg.OnLogout,
		logger:     cfg.Logger,
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.queue == nil {
		s.queue = NewSliceQueue()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	tokens, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("client: loading tokens: %w", err)
	}
	s.tokens = tokens
	if tokens.AccessToken != "" {
		s.state = StateAuthenticated
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tokens returns a copy of the current tokens.
func (s *Session) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Login signs in with email and password and returns the caller's profile.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	return s.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates a self-service account and signs in as it.
func (s *Session) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return s.authenticate(ctx, "/auth/register", in)
}

func (s *Session) authenticate(ctx context.Context, path string, payload any) (*User, error) {
	s.mu.Lock()
	stale := s.resetLocked()
	s.state = StateAuthenticating
	s.mu.Unlock()
	release(stale, ErrSessionExpired)

	req, err := jsonRequest(http.MethodPost, path, payload)
	if err != nil {
		s.setState(StateUnauthenticated)
		return nil, err
	}

	var pair Tokens
	if err := s.public(ctx, req, &pair); err != nil {
		s.setState(StateUnauthenticated)
		return nil, err
	}
	if pair.AccessToken == "" {
		s.setState(StateUnauthenticated)
		return nil, fmt.Errorf("client: %s returned no access token", path)
	}

	s.mu.Lock()
	s.tokens = pair
	s.state = StateAuthenticated
	saveErr := s.store.Save(pair)
	s.mu.Unlock()
	if saveErr != nil {
		s.logger.Warn("failed to persist tokens", "error", saveErr)
	}

	return s.Me(ctx)
}

// Logout forgets the local session and revokes the refresh token on the
// server. A failed revoke is logged and otherwise ignored.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	refresh := s.tokens.RefreshToken
	stale := s.resetLocked()
	s.state = StateUnauthenticated
	clearErr := s.store.Clear()
	s.mu.Unlock()
	release(stale, ErrSessionExpired)

	if clearErr != nil {
		s.logger.Warn("failed to clear stored tokens", "error", clearErr)
	}
	if refresh == "" {
		return
	}

	req, err := jsonRequest(http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh})
	if err != nil {
		return
	}
	if err := s.public(ctx, req, nil); err != nil {
		s.logger.Warn("server logout failed", "error", err)
	}
}

// Refresh exchanges the refresh token for a new access token. It follows
// the same single-flight path as a 401 does.
func (s *Session) Refresh(ctx context.Context) error {
	tokens := s.Tokens()
	if tokens.RefreshToken == "" {
		return ErrNotAuthenticated
	}
	return s.recover(ctx, tokens.AccessToken)
}

// resetLocked drops the current tokens and starts a new generation. Callers
// queued behind an in-flight refresh are returned for release; that refresh
// belongs to the old generation and will discard its result.
func (s *Session) resetLocked() []Waiter {
	s.gen++
	s.tokens = Tokens{}
	return s.queue.Drain()
}

func release(waiters []Waiter, err error) {
	for _, w := range waiters {
		w <- err
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// authorized sends req with the bearer token. A 401 triggers one refresh
// and one replay; a second 401 is returned to the caller as is.
func (s *Session) authorized(ctx context.Context, req request, out any) error {
	sent := s.Tokens().AccessToken
	if sent == "" {
		return ErrNotAuthenticated
	}

	status, body, err := s.send(ctx, req, sent)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := s.recover(ctx, sent); err != nil {
			return err
		}
		status, body, err = s.send(ctx, req, s.Tokens().AccessToken)
		if err != nil {
			return err
		}
	}
	return decode(status, body, out)
}

// recover gets the session a usable access token after sent was rejected.
// If another caller already replaced sent, nothing is done. If a refresh is
// in flight the caller queues behind it. Otherwise the caller runs the
// refresh and releases the queue when it settles.
func (s *Session) recover(ctx context.Context, sent string) error {
	s.mu.Lock()
	switch {
	case s.state == StateUnauthenticated:
		s.mu.Unlock()
		return ErrSessionExpired
	case s.state == StateRefreshing:
		w := make(Waiter, 1)
		s.queue.Push(w)
		s.mu.Unlock()
		select {
		case err := <-w:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case s.tokens.AccessToken != sent:
		s.mu.Unlock()
		return nil
	}
	refresh := s.tokens.RefreshToken
	gen := s.gen
	s.state = StateRefreshing
	s.mu.Unlock()

	// Waiters depend on this call, so it outlives the caller's context.
	access, err := s.redeem(context.WithoutCancel(ctx), refresh)

	s.mu.Lock()
	if s.gen != gen {
		// Logged out or signed in again meanwhile; the queue now belongs to
		// the new session.
		s.mu.Unlock()
		s.logger.Debug("discarding refresh result for a replaced session", "error", err)
		return ErrSessionExpired
	}
	waiters := s.queue.Drain()
	var storeErr error
	if err == nil {
		s.tokens.AccessToken = access
		s.state = StateAuthenticated
		storeErr = s.store.Save(s.tokens)
	} else {
		s.tokens = Tokens{}
		s.state = StateUnauthenticated
		storeErr = s.store.Clear()
		err = fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	s.mu.Unlock()

	if storeErr != nil {
		s.logger.Warn("failed to update stored tokens", "error", storeErr)
	}
	release(waiters, err)
	if err != nil {
		s.logger.Info("session expired", "error", err, "waiters", len(waiters))
		if s.onLogout != nil {
			s.onLogout()
		}
	}
	return err
}

func (s *Session) redeem(ctx context.Context, refresh string) (string, error) {
	if refresh == "" {
		return "", errors.New("no refresh token")
	}
	req, err := jsonRequest(http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh})
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := s.public(ctx, req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("refresh returned no access token")
	}
	return out.Token, nil
}

// public sends req without credentials.
func (s *Session) public(ctx context.Context, req request, out any) error {
	status, body, err := s.send(ctx, req, "")
	if err != nil {
		return err
	}
	return decode(status, body, out)
}

// request is a fully buffered call so it can be replayed after a refresh.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("client: encoding request body: %w", err)
		}
		req.body = encoded
		req.contentType = "application/json"
	}
	return req, nil
}

func (s *Session) send(ctx context.Context, req request, token string) (int, []byte, error) {
	target := s.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("client: creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("client: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("client: reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"requestId"`
	} `json:"meta"`
}

func decode(status int, body []byte, out any) error {
	var env envelope
	jsonErr := json.Unmarshal(body, &env)

	if status < 200 || status > 299 {
		if jsonErr != nil || env.Error == nil {
			return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
		}
		return &APIError{
			StatusCode: status,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
			Details:    env.Error.Details,
			RequestID:  env.Meta.RequestID,
		}
	}

	if out == nil {
		return nil
	}
	if jsonErr != nil {
		return fmt.Errorf("client: decoding response: %w", jsonErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("client: decoding response data: %w", err)
	}
	return nil
}
