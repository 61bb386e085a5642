// Package client is a typed Go client for the notes HTTP API.
package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

type (
	Note struct {
		ID        uint64    `json:"id"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		Color     string    `json:"color"`
		X         float64   `json:"x"`
		Y         float64   `json:"y"`
		Width     float64   `json:"width"`
		Height    float64   `json:"height"`
		OwnerID   uint64    `json:"ownerId"`
		TopicID   *uint64   `json:"topicId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Topic struct {
		ID        uint64   `json:"id"`
		Name      string   `json:"name"`
		OwnerID   uint64   `json:"ownerId"`
		ShareCode string   `json:"shareCode"`
		Members   []uint64 `json:"members"`
	}

	User struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	}

	NewNote struct {
		Title   string   `json:"title"`
		Content string   `json:"content,omitempty"`
		Color   string   `json:"color,omitempty"`
		X       *float64 `json:"x,omitempty"`
		Y       *float64 `json:"y,omitempty"`
		Width   *float64 `json:"width,omitempty"`
		Height  *float64 `json:"height,omitempty"`
		TopicID *uint64  `json:"topicId,omitempty"`
	}

	// NotePatch sends only the non-nil fields.
	NotePatch struct {
		Title   *string  `json:"title,omitempty"`
		Content *string  `json:"content,omitempty"`
		Color   *string  `json:"color,omitempty"`
		X       *float64 `json:"x,omitempty"`
		Y       *float64 `json:"y,omitempty"`
		Width   *float64 `json:"width,omitempty"`
		Height  *float64 `json:"height,omitempty"`
	}

	credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginResp struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notely: status %d", e.Status)
	}
	return fmt.Sprintf("notely: %s (%d)", e.Message, e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client is safe for concurrent use. The session token is kept after Login
// and sent on every call.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(10 * time.Second),
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	out := &User{}
	if err := c.do(ctx, resty.MethodPost, "/api/auth/register", nil, credentials{email, password}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	out := &loginResp{}
	if err := c.do(ctx, resty.MethodPost, "/api/auth/login", nil, credentials{email, password}, out); err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, resty.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	out := &User{}
	if err := c.do(ctx, resty.MethodGet, "/api/auth/me", nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	out := make([]Note, 0)
	if err := c.do(ctx, resty.MethodGet, "/api/notes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateNote(ctx context.Context, in NewNote) (*Note, error) {
	out := &Note{}
	if err := c.do(ctx, resty.MethodPost, "/api/notes", nil, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateNote(ctx context.Context, id uint64, patch NotePatch) (*Note, error) {
	out := &Note{}
	if err := c.do(ctx, resty.MethodPut, "/api/notes", idParam(id), patch, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteNote(ctx context.Context, id uint64) error {
	return c.do(ctx, resty.MethodDelete, "/api/notes", idParam(id), nil, nil)
}

func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	out := make([]Topic, 0)
	if err := c.do(ctx, resty.MethodGet, "/api/topics", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTopic(ctx context.Context, name string) (*Topic, error) {
	out := &Topic{}
	if err := c.do(ctx, resty.MethodPost, "/api/topics", nil, map[string]string{"name": name}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RenameTopic(ctx context.Context, id uint64, name string) (*Topic, error) {
	out := &Topic{}
	if err := c.do(ctx, resty.MethodPut, "/api/topics", idParam(id), map[string]string{"name": name}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteTopic(ctx context.Context, id uint64) error {
	return c.do(ctx, resty.MethodDelete, "/api/topics", idParam(id), nil, nil)
}

func (c *Client) JoinTopic(ctx context.Context, code string) (*Topic, error) {
	out := &Topic{}
	if err := c.do(ctx, resty.MethodPost, "/api/topics/join", nil, map[string]string{"code": code}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, result interface{}) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&APIError{})
	if token := c.Token(); token != "" {
		req.SetHeader("Authorization", token)
	}
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

func idParam(id uint64) map[string]string {
	return map[string]string{"id": strconv.FormatUint(id, 10)}
}
