package adax

import (
	"context"
	"fmt"
	"golang.org/x/oauth2"
	"log/slog"
	"net/http"
	"sync"
)

// Credentials used to authenticate with the Adax API. Either Token, or both ClientID and ClientPassword, must be set.
// If only client credentials are provided, the Authenticator obtains a token through a password grant.
type Credentials struct {
	Token          string
	ClientID       string
	ClientPassword string
}

// Valid returns true if the credentials can be used to authenticate.
func (c Credentials) Valid() bool {
	return c.Token != "" || c.refreshable()
}

func (c Credentials) refreshable() bool {
	return c.ClientID != "" && c.ClientPassword != ""
}

// Authenticator owns the bearer token used by the Client.
//
// The token is not persisted and has no tracked expiry: it is obtained lazily when absent, and dropped when the API rejects it.
type Authenticator struct {
	credentials Credentials
	config      oauth2.Config
	httpClient  *http.Client
	logger      *slog.Logger
	lock        sync.Mutex
	token       string
}

// NewAuthenticator returns an Authenticator that obtains its token from tokenURL.
func NewAuthenticator(tokenURL string, credentials Credentials, httpClient *http.Client, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		credentials: credentials,
		config: oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		logger:     logger,
		token:      credentials.Token,
	}
}

// Refresh obtains a new token using the client credentials. On failure, the current token is cleared.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.refresh(ctx)
}

func (a *Authenticator) refresh(ctx context.Context) error {
	if !a.credentials.refreshable() {
		return ErrNoCredentials
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.config.PasswordCredentialsToken(ctx, a.credentials.ClientID, a.credentials.ClientPassword)
	if err != nil {
		a.token = ""
		a.logger.Error("failed to obtain token", "err", err)
		return fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	a.token = token.AccessToken
	a.logger.Debug("token obtained", "type", token.TokenType)
	return nil
}

// Token returns the current token. If no token is available, and client credentials are configured, it first refreshes the token.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.token == "" {
		if err := a.refresh(ctx); err != nil {
			return "", err
		}
	}
	return a.token, nil
}

// Invalidate drops the current token, so the next call to Token obtains a new one.
// A token configured directly (i.e. without client credentials) can't be replaced and is kept.
func (a *Authenticator) Invalidate() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.credentials.refreshable() {
		a.token = ""
	}
}
