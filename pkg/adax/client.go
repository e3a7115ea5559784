// Package adax provides a client for the Adax cloud API, used to monitor and control Adax electric heaters.
//
// Typical use:
//
//	c := adax.New(adax.Credentials{ClientID: "12345", ClientPassword: "secret"})
//	rooms, err := c.ListRooms(ctx)
//
// The client obtains a bearer token on first use, and whenever the API rejects the current one.
package adax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultURL     = "https://api-1.adax.no/client-api"
	DefaultTimeout = 15 * time.Second

	tokenPath   = "/auth/token"
	contentPath = "/rest/v1/content/"
	controlPath = "/rest/v1/control/"

	maxErrorBody = 4096
)

// Client calls the Adax API
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *Authenticator
	logger     *slog.Logger
}

type Option func(*Client)

// WithURL overrides the base URL of the Adax API
func WithURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithRoundTripper sets the http.RoundTripper used to call the API, e.g. to instrument the calls
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithTimeout sets the timeout of each API call (including the token exchange). Default is 15 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client for the provided Credentials. New doesn't contact the API: if the credentials are not valid,
// every call fails with ErrNoCredentials.
func New(credentials Credentials, options ...Option) *Client {
	c := Client{
		baseURL:    DefaultURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(&c)
	}
	c.auth = NewAuthenticator(c.baseURL+tokenPath, credentials, c.httpClient, c.logger.With("component", "auth"))
	return &c
}

// ListRooms returns all rooms, with their current and target temperature.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp content
	err := c.withValidToken(ctx, func(ctx context.Context, token string) error {
		return c.call(ctx, http.MethodGet, contentPath, token, nil, &resp)
	})
	if err != nil {
		c.logger.Error("failed to get rooms", "err", err, "kind", FailureKind(err))
		return nil, fmt.Errorf("rooms: %w", err)
	}
	return resp.Rooms, nil
}

// SetTemperature sets the target temperature of a room, in degrees Celsius.
// The temperature is sent in hundredths of a degree, rounded to the nearest integer. A temperature that
// can't be encoded (NaN, infinite, out of range) fails with ErrInvalidTemperature, without calling the API.
func (c *Client) SetTemperature(ctx context.Context, roomID int, temperature float64) error {
	hundredths, err := ToHundredths(temperature)
	if err != nil {
		c.logger.Error("invalid target temperature", "room", roomID, "err", err)
		return fmt.Errorf("control: %w", err)
	}
	req := control{Rooms: []roomTarget{{ID: roomID, TargetTemperature: hundredths}}}
	err = c.withValidToken(ctx, func(ctx context.Context, token string) error {
		return c.call(ctx, http.MethodPost, controlPath, token, req, nil)
	})
	if err != nil {
		c.logger.Error("failed to set temperature", "room", roomID, "temperature", temperature, "err", err, "kind", FailureKind(err))
		return fmt.Errorf("control: %w", err)
	}
	c.logger.Debug("temperature set", "room", roomID, "temperature", temperature)
	return nil
}

// withValidToken obtains a token (refreshing it once if needed) and passes it to op. If the API rejects the token,
// the token is invalidated so the next call gets a new one.
func (c *Client) withValidToken(ctx context.Context, op func(context.Context, string) error) error {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}
	err = op(ctx, token)
	if errorIsStatus(err, http.StatusUnauthorized) {
		c.auth.Invalidate()
	}
	return err
}

func (c *Client) call(ctx context.Context, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTransportFailure, err)
	}
	return nil
}

func errorIsStatus(err error, statusCode int) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == statusCode
}
