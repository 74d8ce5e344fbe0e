// Package backend holds the HTTP clients for the gateway's collaborators:
// the persistence service (membership, friendships) and the auth service
// (token verification).
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voxhall/gateway/internal/domain"
)

const secretHeader = "X-Internal-Secret"

type PersistenceClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPersistenceClient(baseURL, secret string) *PersistenceClient {
	return &PersistenceClient{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PersistenceClient) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set(secretHeader, p.secret)
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (p *PersistenceClient) FriendsOf(ctx context.Context, userID domain.UserID) ([]domain.UserID, error) {
	var body struct {
		FriendIDs []domain.UserID `json:"friendIds"`
	}
	status, err := p.get(ctx, fmt.Sprintf("/internal/users/%d/friends", userID), &body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("backend: friends of %d: status %d", userID, status)
	}
	return body.FriendIDs, nil
}

func (p *PersistenceClient) IsServerMember(ctx context.Context, userID domain.UserID, serverID domain.ServerID) (bool, error) {
	var body struct {
		Member bool `json:"member"`
	}
	status, err := p.get(ctx, fmt.Sprintf("/internal/servers/%d/members/%d", serverID, userID), &body)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return body.Member, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("backend: membership %d/%d: status %d", serverID, userID, status)
	}
}

func (p *PersistenceClient) ServerOfChannel(ctx context.Context, channelID domain.ChannelID) (domain.ServerID, error) {
	var body struct {
		ServerID domain.ServerID `json:"serverId"`
	}
	status, err := p.get(ctx, fmt.Sprintf("/internal/channels/%d", channelID), &body)
	if err != nil {
		return 0, err
	}
	switch status {
	case http.StatusOK:
		return body.ServerID, nil
	case http.StatusNotFound:
		return 0, &domain.NotFoundError{Resource: "channel", ID: int64(channelID)}
	default:
		return 0, fmt.Errorf("backend: channel %d: status %d", channelID, status)
	}
}
