package upstream

import (
	"context"
	"net/http"

	"github.com/atmin009/tutor-frontend/internal/models"
)

// AuthResult is the backend's login/register response. Unlike the other
// endpoints it is not wrapped in the {data, message} envelope.
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates against the backend and returns its bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RegisterParams are the fields for account creation. Phone is digits only.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// Register creates an account and returns the backend's bearer token.
func (c *Client) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
