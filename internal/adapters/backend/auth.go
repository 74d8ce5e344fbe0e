package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voxhall/gateway/internal/domain"
)

type AuthClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewAuthClient(baseURL, secret string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyToken resolves a bearer token to its user. An unknown or expired
// token is an authorization failure, not a transport error.
func (a *AuthClient) VerifyToken(ctx context.Context, token string) (domain.User, error) {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return domain.User{}, fmt.Errorf("auth: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/internal/sessions/verify", bytes.NewReader(payload))
	if err != nil {
		return domain.User{}, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, a.secret)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth: verify token: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			UserID      domain.UserID `json:"userId"`
			DisplayName string        `json:"displayName"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return domain.User{}, fmt.Errorf("auth: decode response: %w", err)
		}
		return domain.User{ID: body.UserID, DisplayName: body.DisplayName}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.User{}, domain.Unauthorized("invalid session token")
	default:
		return domain.User{}, fmt.Errorf("auth: verify token: status %d", resp.StatusCode)
	}
}
