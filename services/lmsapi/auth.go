package lmsapi

import (
	"context"
	"net/http"

	"github.com/trezcool/lms/core/session"
)

var _ session.Authenticator = (*Client)(nil)

// jwtResponse is the signin payload: a token plus the user's fields.
type jwtResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	session.User
}

type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
}

func (c *Client) SignIn(ctx context.Context, creds session.Credentials) (session.SignInResult, error) {
	var resp jwtResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signin", body: creds}, &resp)
	if err != nil {
		return session.SignInResult{}, err
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	return session.SignInResult{Token: token, User: resp.User}, nil
}

func (c *Client) SignUp(ctx context.Context, acct session.NewAccount) (session.User, error) {
	body := signupRequest{
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Username:  acct.Username,
		Email:     acct.Email,
		Password:  acct.Password,
		Role:      acct.Role,
	}
	var usr session.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/signup", body: body}, &usr)
	return usr, err
}

// CurrentUser fetches the identity behind token, whatever the client's TokenSource holds.
func (c *Client) CurrentUser(ctx context.Context, token string) (session.User, error) {
	var usr session.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &usr)
	return usr, err
}
