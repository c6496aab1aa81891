// Package auth obtains a bearer token for the provider API, either from a
// stored credential or through an interactive OAuth2 PKCE flow.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/mkarsli/cf-zone-provision/config"
	"github.com/mkarsli/cf-zone-provision/metrics"
)

// ErrCallbackTimeout means the user never completed the browser login
// within the configured window. Terminal: requires user action, not retry.
var ErrCallbackTimeout = errors.New("authorization callback not received before timeout")

// ErrStateMismatch means the callback carried a missing or foreign state
// parameter and was rejected as a possible CSRF/stale redirect.
var ErrStateMismatch = errors.New("authorization callback state missing or mismatched")

var dashEndpoint = oauth2.Endpoint{
	AuthURL:  "https://dash.cloudflare.com/oauth2/auth",
	TokenURL: "https://dash.cloudflare.com/oauth2/token",
}

const callbackPage = `<html><body><h1>Authorized</h1><p>You can close this page and return to the terminal.</p></body></html>`

type Resolver struct {
	cfg     config.Auth
	store   *Store
	metrics *metrics.Metrics

	// Swapped out in tests.
	endpoint      oauth2.Endpoint
	openBrowser   func(url string) error
	wranglerPaths []string
}

func NewResolver(cfg config.Auth, store *Store, m *metrics.Metrics) *Resolver {
	return &Resolver{
		cfg:           cfg,
		store:         store,
		metrics:       m,
		endpoint:      dashEndpoint,
		openBrowser:   browser.OpenURL,
		wranglerPaths: wranglerConfigPaths(),
	}
}

// Resolve returns a usable bearer token. Static config token first, then
// the credential store (refreshing when expired), then the wrangler file,
// and only as a last resort the interactive login.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.cfg.Token != "" {
		slog.Debug("Using static API token from configuration")
		return r.cfg.Token, nil
	}

	if token, err := r.store.Load(); err == nil {
		if token.Valid() {
			slog.Debug("Using stored credential")
			return token.AccessToken, nil
		}
		if refreshed, err := r.refresh(ctx, token); err == nil {
			return refreshed.AccessToken, nil
		} else {
			slog.Warn("Fail refresh stored credential", "error", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Fail read credential store", "error", err)
	}

	if token := loadWranglerToken(r.wranglerPaths); token != nil {
		if token.Valid() {
			slog.Info("Using wrangler credential")
			return token.AccessToken, nil
		}
		if refreshed, err := r.refresh(ctx, token); err == nil {
			slog.Info("Refreshed wrangler credential")
			return refreshed.AccessToken, nil
		}
	}

	token, err := r.Login(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (r *Resolver) refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	refreshed, err := r.oauthConfig().TokenSource(ctx, token).Token()
	if err != nil {
		return nil, err
	}
	if err := r.store.Save(refreshed, r.cfg.Scopes); err != nil {
		slog.Warn("Fail persist refreshed credential", "error", err)
	}
	return refreshed, nil
}

// Login runs the interactive authorization-code-with-PKCE flow. The local
// callback listener is held only for this attempt and is shut down on
// success, failure and timeout alike.
func (r *Resolver) Login(ctx context.Context) (*oauth2.Token, error) {
	conf := r.oauthConfig()
	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	authURL := conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	callbackCh := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if got := q.Get("state"); got == "" || got != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackCh, callbackResult{err: ErrStateMismatch})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			deliver(callbackCh, callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackPage)
		deliver(callbackCh, callbackResult{code: code})
	})

	addr := fmt.Sprintf("127.0.0.1:%d", r.cfg.CallbackPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s for oauth callback: %w", addr, err)
	}
	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Fail shutdown callback listener", "error", err)
		}
	}()

	slog.Info("Waiting for browser authorization", "url", authURL, "timeout", r.cfg.Timeout)
	if err := r.openBrowser(authURL); err != nil {
		slog.Warn("Fail open browser, open the URL manually", "url", authURL, "error", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	select {
	case cb := <-callbackCh:
		if cb.err != nil {
			r.metrics.IncAuthLogin(false)
			return nil, cb.err
		}
		token, err := conf.Exchange(waitCtx, cb.code, oauth2.VerifierOption(verifier))
		if err != nil {
			r.metrics.IncAuthLogin(false)
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		if token.AccessToken == "" {
			r.metrics.IncAuthLogin(false)
			return nil, errors.New("token exchange response missing access token")
		}
		if err := r.store.Save(token, r.cfg.Scopes); err != nil {
			slog.Warn("Fail persist credential", "error", err)
		}
		r.metrics.IncAuthLogin(true)
		slog.Info("Authorization complete")
		return token, nil
	case <-waitCtx.Done():
		r.metrics.IncAuthLogin(false)
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrCallbackTimeout
		}
		return nil, waitCtx.Err()
	}
}

func (r *Resolver) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    r.cfg.ClientID,
		Endpoint:    r.endpoint,
		RedirectURL: fmt.Sprintf("http://localhost:%d/oauth/callback", r.cfg.CallbackPort),
		Scopes:      r.cfg.Scopes,
	}
}

type callbackResult struct {
	code string
	err  error
}

// deliver drops late callbacks instead of blocking the handler once a
// result has already been consumed.
func deliver(ch chan<- callbackResult, cb callbackResult) {
	select {
	case ch <- cb:
	default:
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
