package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/pkg/models"
)

// Reference tags messages sent by the bot so agents can tell them apart.
const Reference = "bot:chatgpt"

// Presence actions.
const (
	PresenceTyping    = "typing"
	PresenceRecording = "recording"
)

// APIError is a non-2xx gateway answer. Body is passed through untouched.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error: %d - %s", e.Status, strings.TrimSpace(string(e.Body)))
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg *config.Config) *Client {
	limit := rate.Inf
	if cfg.GatewayRateLimit > 0 {
		limit = rate.Limit(cfg.GatewayRateLimit)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GatewayBaseURL, "/"),
		token:   cfg.GatewayToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// --- Message Structures ---

type Media struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

type OutboundMessage struct {
	Phone     string `json:"phone"`
	Device    string `json:"device,omitempty"`
	Message   string `json:"message,omitempty"`
	Media     *Media `json:"media,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type SentMessage struct {
	ID        string    `json:"id"`
	WaID      string    `json:"waId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type typingRequest struct {
	Action   string `json:"action"`
	Duration int    `json:"duration"`
	Chat     string `json:"chat"`
}

type ownerRequest struct {
	Agent string `json:"agent,omitempty"`
	Force bool   `json:"force"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		var jsonData []byte
		switch b := body.(type) {
		case json.RawMessage:
			jsonData = b
		default:
			var err error
			if jsonData, err = json.Marshal(body); err != nil {
				return nil, err
			}
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, &APIError{Status: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// --- Messaging Methods ---

// SendRawMessage forwards an arbitrary message payload and returns the raw answer.
func (c *Client) SendRawMessage(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.sendRequest(ctx, http.MethodPost, "/messages", payload)
}

func (c *Client) SendMessage(ctx context.Context, msg OutboundMessage) (*SentMessage, error) {
	resp, err := c.sendRequest(ctx, http.MethodPost, "/messages", msg)
	if err != nil {
		return nil, err
	}
	var sent SentMessage
	if err := json.Unmarshal(resp, &sent); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	return &sent, nil
}

// --- Chat Methods ---

func (c *Client) SendTypingState(ctx context.Context, deviceID, phone, action string) error {
	_, err := c.sendRequest(ctx, http.MethodPost, fmt.Sprintf("/chat/%s/typing", url.PathEscape(deviceID)), typingRequest{
		Action:   action,
		Duration: 10,
		Chat:     phone,
	})
	return err
}

func (c *Client) UpdateChatLabels(ctx context.Context, deviceID, chatID string, labels []string) error {
	path := fmt.Sprintf("/chat/%s/chats/%s/labels", url.PathEscape(deviceID), url.PathEscape(chatID))
	_, err := c.sendRequest(ctx, http.MethodPatch, path, labels)
	return err
}

func (c *Client) UpdateChatMetadata(ctx context.Context, deviceID, phone string, metadata []models.MetadataEntry) error {
	path := fmt.Sprintf("/chat/%s/contacts/%s/metadata", url.PathEscape(deviceID), url.PathEscape(phone))
	_, err := c.sendRequest(ctx, http.MethodPatch, path, metadata)
	return err
}

// AssignChatToAgent hands the chat to a human. An empty agent lets the gateway pick one.
func (c *Client) AssignChatToAgent(ctx context.Context, deviceID, chatID, agent string, force bool) error {
	path := fmt.Sprintf("/chat/%s/chats/%s/owner", url.PathEscape(deviceID), url.PathEscape(chatID))
	_, err := c.sendRequest(ctx, http.MethodPatch, path, ownerRequest{Agent: agent, Force: force})
	return err
}
