package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/netx"
)

type Client interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Tokens, error)
	Logout(ctx context.Context, accessToken string) (int64, error)
	Me(ctx context.Context, accessToken string) (*models.Profile, error)
	Sessions(ctx context.Context, accessToken string, limit int) ([]models.LoginRecord, error)
	Ping(ctx context.Context) error
}

// envelope covers both the success and the failure response shapes.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details []FieldError    `json:"details"`
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for the API at baseURL. Every call is bound
// by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("server url %q: want http(s)://host[:port]", baseURL)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// call performs one request and decodes the success payload into out.
func (c *HTTPClient) call(ctx context.Context, method, path, token string, body, out any) error {
	var header http.Header
	if token != "" {
		header = http.Header{}
		header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	var env envelope
	status, err := netx.DoJSON(ctx, c.http, method, c.baseURL+path, header, body, &env)
	if err != nil {
		if status == 0 {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	if !env.Status {
		return &APIError{StatusCode: status, Code: env.Code, Message: env.Error, Details: env.Details}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	var s models.Session
	if err := c.call(ctx, http.MethodPost, "/auth/signup", "", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	var s models.Session
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.Tokens, error) {
	var t models.Tokens
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", refreshToken, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) (int64, error) {
	var out struct {
		SessionsClosed int64 `json:"sessions_closed"`
	}
	if err := c.call(ctx, http.MethodPost, "/auth/logout", accessToken, nil, &out); err != nil {
		return 0, err
	}
	return out.SessionsClosed, nil
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*models.Profile, error) {
	var p models.Profile
	if err := c.call(ctx, http.MethodGet, "/auth/me", accessToken, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Sessions(ctx context.Context, accessToken string, limit int) ([]models.LoginRecord, error) {
	path := "/auth/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out struct {
		Sessions []models.LoginRecord `json:"sessions"`
	}
	if err := c.call(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", "", nil, nil)
}
