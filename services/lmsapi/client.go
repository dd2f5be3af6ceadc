// Package lmsapi is the client of the LMS REST backend.
package lmsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// TokenSource yields the bearer token of the current session, or "" when signed out.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client calls the backend. It never retries; the only timeout is the http.Client's.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing backend url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("backend url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// WithToken returns a copy of c that sends tokens' token on every request.
func (c *Client) WithToken(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// envelope is the backend's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Status  int             `json:"status"`
}

type request struct {
	method string
	path   string // escaped
	query  url.Values
	body   interface{}
	token  string // overrides the TokenSource when set
}

func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	// req.path is already escaped; keep it as the raw path so it is not escaped twice
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + req.path
	path, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return errors.Wrapf(err, "bad request path %q", req.path)
	}
	u.Path = path
	u.RawQuery = req.query.Encode()

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	token := req.token
	if token == "" && c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.method, req.path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s %s", req.method, req.path)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || (env.Success != nil && !*env.Success) {
		return newError(resp.StatusCode, env.Message, raw)
	}
	if decodeErr != nil {
		if len(bytes.TrimSpace(raw)) == 0 && out == nil {
			return nil
		}
		return errors.Wrapf(decodeErr, "decoding %s %s", req.method, req.path)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(env.Data, out), "decoding %s %s data", req.method, req.path)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}
