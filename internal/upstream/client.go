// Package upstream is the typed REST client for the external tutoring
// backend. All durable state (courses, orders, enrollments, progress) lives
// behind these endpoints; the gateway only orchestrates calls against them.
//
// The caller's bearer token travels in the request context (WithToken), and
// a 401 from any endpoint invokes the injected unauthorized callback so the
// session layer can invalidate the stored token.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
var ErrUnauthorized = errors.New("upstream: unauthorized")

// genericMessage is the fallback when the backend error payload carries no
// human-readable message.
const genericMessage = "เกิดข้อผิดพลาด กรุณาลองใหม่อีกครั้ง"

// Error is a backend-reported failure, preserving the user-facing message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: %d: %s", e.StatusCode, e.Message)
}

// Message extracts the backend's user-facing message from err, or returns
// fallback for transport-level failures.
func Message(err error, fallback string) string {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Message
	}
	return fallback
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom extracts the bearer token from ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// Client calls the external tutoring backend.
type Client struct {
	baseURL        string
	http           *http.Client
	logger         *zap.Logger
	onUnauthorized func(ctx context.Context)
}

// NewClient creates an upstream client. baseURL is the backend API root
// (e.g. https://api.example.com/api). onUnauthorized, when non-nil, is
// invoked for every 401 response.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, onUnauthorized func(ctx context.Context)) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: timeout},
		logger:         logger,
		onUnauthorized: onUnauthorized,
	}
}

// envelope is the backend's standard {data, message} wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do issues a JSON request. When out is non-nil the response's data field is
// decoded into it; pass the envelope itself to consume the raw body shape.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := TokenFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		if msg == "" {
			msg = genericMessage
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// getData issues a GET and decodes the envelope's data field into out.
func (c *Client) getData(ctx context.Context, path string, query url.Values, out interface{}) error {
	var env envelope
	if err := c.do(ctx, http.MethodGet, path, query, nil, &env); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data %s: %w", path, err)
	}
	return nil
}

// postData issues a POST and decodes the envelope's data field into out.
func (c *Client) postData(ctx context.Context, path string, body, out interface{}) error {
	var env envelope
	if err := c.do(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data %s: %w", path, err)
	}
	return nil
}
