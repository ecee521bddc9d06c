package httpapi

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

	portalauth "github.com/classpoint/portalauth"
	"github.com/classpoint/portalauth/credstore"
	"github.com/classpoint/portalauth/tenant"
	"go.uber.org/zap"
)

// Client talks to the school-management backend over HTTP. It implements
// both [portalauth.API] and [tenant.Directory], so a single client can be
// handed to the builder and serve tenant metadata lookups too.
//
// Every failure is mapped onto the portalauth error taxonomy before it is
// returned; callers never see raw status codes or transport errors.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(cfg portalauth.TransportConfig, log *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("httpapi: base URL required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("httpapi: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// errorEnvelope is the backend's error response shape.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details struct {
		LockoutSeconds int `json:"lockoutSeconds"`
	} `json:"details"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tenantRecord struct {
	ID          string `json:"id"`
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"displayName"`
}

// Login implements [portalauth.API].
func (c *Client) Login(ctx context.Context, req portalauth.LoginRequest) (*portalauth.LoginResponse, error) {
	var resp portalauth.LoginResponse
	if err := c.post(ctx, "/auth/login", req, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh implements [portalauth.API]. A 401 here means the refresh token
// itself is no longer honored, which maps to [portalauth.ErrTokenExpired].
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*credstore.Pair, error) {
	var pair credstore.Pair
	err := c.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, "", &pair)
	if err != nil {
		if errors.Is(err, portalauth.ErrInvalidCredentials) {
			return nil, portalauth.ErrTokenExpired
		}
		return nil, err
	}
	return &pair, nil
}

// Logout implements [portalauth.API]. A 401 is treated as success: the
// token the server no longer honors is as revoked as it gets.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	err := c.post(ctx, "/auth/logout", struct{}{}, accessToken, nil)
	if err != nil && (errors.Is(err, portalauth.ErrInvalidCredentials) || errors.Is(err, portalauth.ErrTokenExpired)) {
		return nil
	}
	return err
}

// TenantBySubdomain implements [tenant.Directory].
func (c *Client) TenantBySubdomain(ctx context.Context, subdomain string) (tenant.Context, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/tenants/"+url.PathEscape(subdomain), nil)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("%w: %v", portalauth.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return tenant.Context{}, fmt.Errorf("%w: %v", portalauth.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tenant.Context{}, c.mapError(resp, opTenant)
	}

	var rec tenantRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rec); err != nil {
		return tenant.Context{}, fmt.Errorf("%w: decoding tenant response: %v", portalauth.ErrNetwork, err)
	}
	return tenant.Context{
		TenantID:    rec.ID,
		Subdomain:   rec.Subdomain,
		DisplayName: rec.DisplayName,
	}, nil
}

type operation int

const (
	opAuth operation = iota
	opTenant
)

func (c *Client) post(ctx context.Context, path string, body any, bearer string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", portalauth.ErrValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", portalauth.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", portalauth.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapError(resp, opAuth)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", portalauth.ErrNetwork, err)
	}
	return nil
}

// mapError translates an HTTP failure onto the portalauth taxonomy.
func (c *Client) mapError(resp *http.Response, op operation) error {
	var env errorEnvelope
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(body, &env)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if env.Message != "" {
			return fmt.Errorf("%w: %s", portalauth.ErrValidation, env.Message)
		}
		return portalauth.ErrValidation

	case http.StatusUnauthorized:
		if env.Code == "TOKEN_EXPIRED" {
			return portalauth.ErrTokenExpired
		}
		return portalauth.ErrInvalidCredentials

	case http.StatusForbidden:
		if env.Message != "" {
			return fmt.Errorf("%w: %s", portalauth.ErrForbidden, env.Message)
		}
		return portalauth.ErrForbidden

	case http.StatusLocked:
		return &portalauth.LockoutError{
			RetryAfter: time.Duration(env.Details.LockoutSeconds) * time.Second,
		}

	case http.StatusNotFound:
		if op == opTenant {
			return tenant.ErrNotFound
		}
	}

	c.log.Warn("backend returned unexpected status",
		zap.Int("status", resp.StatusCode),
		zap.String("code", env.Code))
	return fmt.Errorf("%w: unexpected status %d", portalauth.ErrNetwork, resp.StatusCode)
}
