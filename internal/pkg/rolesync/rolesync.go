package rolesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/internal/pkg/env"
)

// Client syncs purchase entitlements to an external chat platform role.
// Grant and revoke must both be safe to repeat; the platform API treats
// re-granting an existing role as a no-op.
type Client interface {
	GrantRole(ctx context.Context, platformUserID string) error
	RevokeRole(ctx context.Context, platformUserID string) error
}

type httpClient struct {
	baseURL string
	token   string
	roleID  string
	http    *http.Client
}

// NewClientFromEnv builds the role sync client from environment config.
// Returns a logging no-op when the platform is not configured, so the
// workflow keeps running in development setups.
func NewClientFromEnv() Client {
	baseURL := env.GetEnv("CHAT_API_URL", "")
	token := env.GetEnv("CHAT_BOT_TOKEN", "")
	roleID := env.GetEnv("CHAT_MEMBER_ROLE_ID", "")
	if baseURL == "" || token == "" || roleID == "" {
		return &noopClient{}
	}
	return &httpClient{
		baseURL: baseURL,
		token:   token,
		roleID:  roleID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *httpClient) GrantRole(ctx context.Context, platformUserID string) error {
	return c.send(ctx, http.MethodPut, platformUserID)
}

func (c *httpClient) RevokeRole(ctx context.Context, platformUserID string) error {
	return c.send(ctx, http.MethodDelete, platformUserID)
}

func (c *httpClient) send(ctx context.Context, method, platformUserID string) error {
	url := fmt.Sprintf("%s/members/%s/roles/%s", c.baseURL, platformUserID, c.roleID)
	body, _ := json.Marshal(map[string]string{"reason": "purchase entitlement sync"})

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("rolesync: %s %s returned %d", method, url, resp.StatusCode)
	}
	return nil
}

type noopClient struct{}

func (n *noopClient) GrantRole(ctx context.Context, platformUserID string) error {
	log.Infof("[RoleSync] chat platform not configured, skipping grant for %s", platformUserID)
	return nil
}

func (n *noopClient) RevokeRole(ctx context.Context, platformUserID string) error {
	log.Infof("[RoleSync] chat platform not configured, skipping revoke for %s", platformUserID)
	return nil
}
