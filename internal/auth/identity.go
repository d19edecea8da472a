package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultTokenLifetime applies when the provider states no expiry.
const defaultTokenLifetime = time.Hour

// GoTrueProvider signs users in against a GoTrue-compatible auth REST API.
type GoTrueProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

func NewGoTrueProvider(baseURL, apiKey string, timeout time.Duration) *GoTrueProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoTrueProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	return p.token(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (p *GoTrueProvider) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	if refreshToken == "" {
		return Credentials{}, ErrNotAuthenticated
	}
	return p.token(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("auth: logout: %s body=%s", resp.Status, string(body))
	}
	return nil
}

func (p *GoTrueProvider) token(ctx context.Context, grant string, payload map[string]string) (Credentials, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/auth/v1/token?grant_type="+grant,
		bytes.NewReader(b),
	)
	if err != nil {
		return Credentials{}, err
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("auth: %s: %w", grant, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credentials{}, err
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return Credentials{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, string(body))
	}
	if resp.StatusCode >= 300 {
		return Credentials{}, errors.New("auth: provider error: " + resp.Status + " body=" + string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credentials{}, fmt.Errorf("auth: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Credentials{}, errors.New("auth: provider returned no access token")
	}

	var expires time.Time
	switch {
	case tr.ExpiresAt > 0:
		expires = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		expires = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		expires = p.now().Add(defaultTokenLifetime)
	}

	return Credentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expires,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}, nil
}

func (p *GoTrueProvider) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
}
