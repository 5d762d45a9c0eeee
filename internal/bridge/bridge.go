// Package bridge is the narrow set of backend calls exposed to the rendered
// chat UI. Every call passes straight through to the backend HTTP API with
// no validation; the backend owns the semantics.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "http://127.0.0.1:3001"
	defaultTimeout = 60 * time.Second
)

// Reply is a decoded backend response. Non-2xx replies with a JSON body are
// returned as replies, not errors.
type Reply struct {
	Status int
	Body   json.RawMessage
}

func (r Reply) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Map decodes an object reply.
func (r Reply) Map() (map[string]any, error) {
	var m map[string]any
	if err := r.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r Reply) String() string {
	var out bytes.Buffer
	if err := json.Indent(&out, r.Body, "", "  "); err != nil {
		return string(r.Body)
	}
	return out.String()
}

type ChatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

type UserValue struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

type Client struct {
	http *resty.Client
	base string
}

// New creates a client for baseURL, or the fixed loopback address when empty.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("User-Agent", "Alice-Desktop/1.0")

	return &Client{http: client, base: baseURL}
}

// WithTimeout returns a copy of c whose requests use timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(c.base).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Alice-Desktop/1.0")
	return &Client{http: client, base: c.base}
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) Health(ctx context.Context) (Reply, error) {
	return c.RawGet(ctx, "/health", nil)
}

func (c *Client) SendMessage(ctx context.Context, req ChatRequest) (Reply, error) {
	return c.RawPost(ctx, "/api/chat", req)
}

// UploadFile posts r as the multipart field "file".
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (Reply, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Reply{}, fmt.Errorf("read upload: %w", err)
	}
	contentType := mimetype.Detect(data).String()

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", name, contentType, bytes.NewReader(data)).
		Post("/api/upload")
	return decode(resp, err, "/api/upload")
}

func (c *Client) UserGet(ctx context.Context, userID, key string) (Reply, error) {
	return c.RawGet(ctx, "/api/user/get", map[string]string{"user_id": userID, "key": key})
}

func (c *Client) UserSet(ctx context.Context, v UserValue) (Reply, error) {
	return c.RawPost(ctx, "/api/user/set", v)
}

func (c *Client) UserList(ctx context.Context, userID string) (Reply, error) {
	return c.RawGet(ctx, "/api/user/list", map[string]string{"user_id": userID})
}

func (c *Client) Scrape(ctx context.Context, url string) (Reply, error) {
	return c.RawPost(ctx, "/api/scrape", map[string]string{"url": url})
}

// RawGet issues GET path with params appended as query values.
func (c *Client) RawGet(ctx context.Context, path string, params map[string]string) (Reply, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	return decode(resp, err, path)
}

// RawPost issues POST path with body encoded as JSON. A nil body is sent
// as an empty object.
func (c *Client) RawPost(ctx context.Context, path string, body any) (Reply, error) {
	if body == nil {
		body = map[string]any{}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	return decode(resp, err, path)
}

func decode(resp *resty.Response, err error, path string) (Reply, error) {
	if err != nil {
		return Reply{}, fmt.Errorf("%s: %w", path, err)
	}

	body := bytes.TrimSpace(resp.Body())
	if !json.Valid(body) {
		return Reply{Status: resp.StatusCode()}, fmt.Errorf("%s: HTTP %d: response is not JSON", path, resp.StatusCode())
	}
	return Reply{Status: resp.StatusCode(), Body: json.RawMessage(body)}, nil
}
