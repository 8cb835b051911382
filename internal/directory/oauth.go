package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/people/v1"

	"github.com/quantumlife/contactbot/internal/core"
	"github.com/quantumlife/contactbot/internal/logging"
	"github.com/quantumlife/contactbot/internal/storage"
)

// TokenProvider keys the People API token in the token store
const TokenProvider = "google-people"

// Scopes requested from the user
var Scopes = []string{people.ContactsReadonlyScope}

// TokenStore persists serialized tokens
type TokenStore interface {
	Get(provider string) ([]byte, error)
	Save(provider string, data []byte, expiresAt *time.Time) error
	Delete(provider string) error
}

// Authenticator owns the OAuth client configuration and the stored user token
type Authenticator struct {
	config *oauth2.Config
	store  TokenStore
	port   int
	out    io.Writer
}

// NewAuthenticator parses a Google client secrets document
func NewAuthenticator(credentialsJSON []byte, store TokenStore, redirectPort int) (*Authenticator, error) {
	cfg, err := google.ConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", redirectPort)

	return &Authenticator{
		config: cfg,
		store:  store,
		port:   redirectPort,
		out:    os.Stdout,
	}, nil
}

// LoadAuthenticator reads the client secrets from path
func LoadAuthenticator(path string, store TokenStore, redirectPort int) (*Authenticator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client credentials: %w", err)
	}
	return NewAuthenticator(data, store, redirectPort)
}

// SetOutput redirects the login prompt
func (a *Authenticator) SetOutput(w io.Writer) {
	a.out = w
}

// AuthURL returns the URL for user authorization
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := a.saveToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Login runs the installed-app flow with a local callback server
func (a *Authenticator) Login(ctx context.Context, timeout time.Duration) error {
	state := uuid.New().String()

	server := NewLocalAuthServer(a.port, state)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start auth server: %w", err)
	}
	defer server.Stop(context.Background())

	authURL := a.AuthURL(state)
	if err := openBrowser(authURL); err != nil {
		logging.Debug("Could not open browser", "error", err)
	}
	fmt.Fprintf(a.out, "\nOpen this URL in your browser to authorize the contact bot:\n\n%s\n\n", authURL)
	fmt.Fprintln(a.out, "Waiting for authorization...")

	code, err := server.WaitForCode(ctx, timeout)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if _, err := a.Exchange(ctx, code); err != nil {
		return err
	}
	logging.Info("Saved People API token")
	return nil
}

// Token returns the stored token or core.ErrNotAuthenticated
func (a *Authenticator) Token() (*oauth2.Token, error) {
	data, err := a.store.Get(TokenProvider)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	token, err := TokenFromJSON(data)
	if err != nil {
		logging.Warn("Stored token is unreadable", "error", err)
		return nil, core.ErrNotAuthenticated
	}
	return token, nil
}

// HTTPClient returns a client that authorizes requests and persists refreshed tokens
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := a.Token()
	if err != nil {
		return nil, err
	}

	src := &savingTokenSource{
		base: a.config.TokenSource(ctx, token),
		last: token.AccessToken,
		save: a.saveToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// Invalidate drops the stored token so the next run has to log in again
func (a *Authenticator) Invalidate() error {
	logging.Info("Invalidating People API token")
	return a.store.Delete(TokenProvider)
}

func (a *Authenticator) saveToken(token *oauth2.Token) error {
	data, err := TokenToJSON(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}
	if err := a.store.Save(TokenProvider, data, expiresAt); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// savingTokenSource writes every refreshed token back to the store
type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last string
	save func(*oauth2.Token) error
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.save(token); err != nil {
			logging.Warn("Could not persist refreshed token", "error", err)
		} else {
			logging.Debug("Saved refreshed token")
		}
	}
	return token, nil
}

// LocalAuthServer handles the OAuth callback locally
type LocalAuthServer struct {
	port     int
	state    string
	server   *http.Server
	listener net.Listener
	codeChan chan string
	errChan  chan error
}

// NewLocalAuthServer creates a callback server that accepts only the given state
func NewLocalAuthServer(port int, state string) *LocalAuthServer {
	return &LocalAuthServer{
		port:     port,
		state:    state,
		codeChan: make(chan string, 1),
		errChan:  make(chan error, 1),
	}
}

// Start listens on localhost; port 0 picks a free port
func (s *LocalAuthServer) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			offer(s.errChan, err)
		}
	}()
	return nil
}

// Addr is the address the server listens on
func (s *LocalAuthServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WaitForCode waits for the OAuth callback
func (s *LocalAuthServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("OAuth timeout - no callback received")
	}
}

// Stop stops the auth server
func (s *LocalAuthServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *LocalAuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != s.state {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		offer(s.errChan, fmt.Errorf("OAuth error: %s", q.Get("error")))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	offer(s.codeChan, code)

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Contact Bot - Connected</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 20vh;">
	<h1>Contacts connected</h1>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

// offer delivers v unless a value is already pending
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// TokenToJSON serializes a token to JSON
func TokenToJSON(token *oauth2.Token) ([]byte, error) {
	return json.Marshal(token)
}

// TokenFromJSON deserializes a token from JSON
func TokenFromJSON(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
