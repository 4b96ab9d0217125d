package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://slack.com/api"

// Client is a minimal Slack Web API client covering the calls this service
// makes: posting messages, opening DM channels and exchanging OAuth codes.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient returns a Client with a bounded per-call timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Message is an outbound chat.postMessage payload.
type Message struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// Block is a Block Kit layout block. Only the shapes this service sends are
// modelled.
type Block struct {
	Type     string       `json:"type"`
	Text     *BlockText   `json:"text,omitempty"`
	Elements []*BlockText `json:"elements,omitempty"`
}

// BlockText is a text object inside a block.
type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PostMessage sends a plain text message to a channel or DM.
func (c *Client) PostMessage(ctx context.Context, token, channel, text string) error {
	return c.post(ctx, token, Message{Channel: channel, Text: text})
}

// PostBlocks sends a structured Block Kit message.
func (c *Client) PostBlocks(ctx context.Context, token string, msg Message) error {
	return c.post(ctx, token, msg)
}

func (c *Client) post(ctx context.Context, token string, msg Message) error {
	var resp apiResponse
	if err := c.call(ctx, token, "chat.postMessage", msg, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("chat.postMessage: slack error %q", resp.Error)
	}
	return nil
}

// OpenDM opens (or retrieves, if already open) a direct-message channel with
// a Slack user and returns its channel id.
func (c *Client) OpenDM(ctx context.Context, token, slackUserID string) (string, error) {
	var resp struct {
		apiResponse
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}

	payload := map[string]string{"users": slackUserID}
	if err := c.call(ctx, token, "conversations.open", payload, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.Channel.ID == "" {
		return "", fmt.Errorf("conversations.open: slack error %q", resp.Error)
	}
	return resp.Channel.ID, nil
}

func (c *Client) call(ctx context.Context, token, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: slack responded with status %s", method, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}

// OAuthResponse is the payload of oauth.v2.access.
type OAuthResponse struct {
	OK          bool   `json:"ok"`
	AppID       string `json:"app_id"`
	AccessToken string `json:"access_token"`
	BotUserID   string `json:"bot_user_id"`
	AuthedUser  struct {
		ID string `json:"id"`
	} `json:"authed_user"`
	Team struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Error string `json:"error,omitempty"`
}

// ExchangeOAuthCode trades an OAuth authorization code for a bot token.
func (c *Client) ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthResponse, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"redirect_uri":  {redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth.v2.access", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth.v2.access: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth.v2.access: %w", err)
	}
	defer resp.Body.Close()

	var oauth OAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&oauth); err != nil {
		return nil, fmt.Errorf("oauth.v2.access: decode response: %w", err)
	}
	if !oauth.OK {
		return nil, fmt.Errorf("oauth.v2.access: slack error %q", oauth.Error)
	}
	return &oauth, nil
}
