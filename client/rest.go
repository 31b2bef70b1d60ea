package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the REST entry point. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client from cfg. cfg.BaseURL must be set.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     cfg.Logger,
		token:      cfg.Token,
	}, nil
}

// SetToken replaces the bearer token used for writes.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Signup registers a new account and adopts the returned token.
func (c *Client) Signup(ctx context.Context, email, password, displayName, avatarURL string) (string, error) {
	req := credentialsRequest{Email: email, Password: password, DisplayName: displayName, AvatarURL: avatarURL}
	var resp tokenResponse
	if err := c.postJSON(ctx, "/api/v1/signup", req, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// Login authenticates and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req := credentialsRequest{Email: email, Password: password}
	var resp tokenResponse
	if err := c.postJSON(ctx, "/api/v1/login", req, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// ListRooms returns all rooms. Open read.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.getJSON(ctx, "/api/v1/chat_rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room. Requires a token.
func (c *Client) CreateRoom(ctx context.Context, name string) (*Room, error) {
	var room Room
	if err := c.postJSON(ctx, "/api/v1/chat_rooms", map[string]string{"name": name}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoom fetches one room by ID. Open read.
func (c *Client) GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	var room Room
	if err := c.getJSON(ctx, "/api/v1/chat_rooms/"+roomID.String(), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetMessages fetches the full ordered snapshot for a room. Open read.
func (c *Client) GetMessages(ctx context.Context, roomID uuid.UUID) ([]Message, error) {
	var messages []Message
	if err := c.getJSON(ctx, "/api/v1/chat_rooms/"+roomID.String()+"/messages", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendText posts a text message. Requires a token.
func (c *Client) SendText(ctx context.Context, roomID uuid.UUID, content string) (*Message, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("content", content); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	return c.postMessage(ctx, roomID, &body, w.FormDataContentType())
}

// SendImage posts an image message. filename is only used for its
// extension; the server assigns its own storage name. Requires a token.
func (c *Client) SendImage(ctx context.Context, roomID uuid.UUID, filename string, image io.Reader) (*Message, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	return c.postMessage(ctx, roomID, &body, w.FormDataContentType())
}

func (c *Client) postMessage(ctx context.Context, roomID uuid.UUID, body io.Reader, contentType string) (*Message, error) {
	url := c.cfg.BaseURL + "/api/v1/chat_rooms/" + roomID.String() + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	var msg Message
	if err := c.do(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage edits a text message's content. Sender-only; the server
// rejects edits to other users' messages and to image messages.
func (c *Client) UpdateMessage(ctx context.Context, roomID uuid.UUID, messageID int64, content string) (*Message, error) {
	url := c.cfg.BaseURL + fmt.Sprintf("/api/v1/chat_rooms/%s/messages/%d", roomID, messageID)
	data, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	var msg Message
	if err := c.do(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message. Sender-only.
func (c *Client) DeleteMessage(ctx context.Context, roomID uuid.UUID, messageID int64) error {
	url := c.cfg.BaseURL + fmt.Sprintf("/api/v1/chat_rooms/%s/messages/%d", roomID, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	return c.do(req, nil)
}

func (c *Client) authorize(req *http.Request) {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req, dest)
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(body))
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return apiError(resp.StatusCode, message)
	}

	if dest != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
