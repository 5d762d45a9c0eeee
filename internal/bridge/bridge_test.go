package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu     sync.Mutex
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("Content-Type") == "application/json" {
			data, _ := io.ReadAll(r.Body)
			rec.body = nil
			_ = json.Unmarshal(data, &rec.body)
		}
		rec.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL), rec
}

func (r *recorded) last() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorded{method: r.method, path: r.path, query: r.query, body: r.body}
}

func TestHealth(t *testing.T) {
	c, rec := newBackend(t, nil)

	reply, err := c.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.last().method)
	assert.Equal(t, "/health", rec.last().path)
	assert.True(t, reply.OK())
	m, err := reply.Map()
	require.NoError(t, err)
	assert.Equal(t, true, m["ok"])
}

func TestSendMessage(t *testing.T) {
	c, rec := newBackend(t, nil)

	_, err := c.SendMessage(context.Background(), ChatRequest{Message: "hi", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.last().method)
	assert.Equal(t, "/api/chat", rec.last().path)
	assert.Equal(t, map[string]any{"message": "hi", "user_id": "u1"}, rec.last().body)
}

func TestUserEndpoints(t *testing.T) {
	c, rec := newBackend(t, nil)
	ctx := context.Background()

	_, err := c.UserGet(ctx, "u1", "name")
	require.NoError(t, err)
	assert.Equal(t, "/api/user/get", rec.last().path)
	assert.Equal(t, map[string]string{"user_id": "u1", "key": "name"}, rec.last().query)

	_, err = c.UserList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/api/user/list", rec.last().path)
	assert.Equal(t, map[string]string{"user_id": "u1"}, rec.last().query)

	_, err = c.UserSet(ctx, UserValue{UserID: "u1", Key: "name", Value: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "/api/user/set", rec.last().path)
	assert.Equal(t, map[string]any{"user_id": "u1", "key": "name", "value": "Ann"}, rec.last().body)
}

func TestScrapeAndRawPost(t *testing.T) {
	c, rec := newBackend(t, nil)
	ctx := context.Background()

	_, err := c.Scrape(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/api/scrape", rec.last().path)
	assert.Equal(t, map[string]any{"url": "https://example.com"}, rec.last().body)

	_, err = c.RawPost(ctx, "/api/custom", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/custom", rec.last().path)
	assert.Empty(t, rec.last().body)
}

func TestUploadFile(t *testing.T) {
	var mu sync.Mutex
	var field, filename, contentType string
	var content []byte
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			field = "file"
			filename = header.Filename
			contentType = header.Header.Get("Content-Type")
			content, _ = io.ReadAll(file)
		}
		_, _ = w.Write([]byte(`{"text":"ocr"}`))
	})

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	reply, err := c.UploadFile(context.Background(), "shot.png", strings.NewReader(string(png)))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "file", field)
	assert.Equal(t, "shot.png", filename)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, png, content)
	assert.JSONEq(t, `{"text":"ocr"}`, string(reply.Body))
}

func TestErrorStatusWithJSONIsAReply(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"missing message"}`))
	})

	reply, err := c.SendMessage(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, reply.Status)
	assert.False(t, reply.OK())
}

func TestNonJSONIsAnError(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	reply, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, reply.Status)
}

func TestUnreachableBackend(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.Health(context.Background())
	require.Error(t, err)
}

func TestReplyString(t *testing.T) {
	r := Reply{Body: json.RawMessage(`{"a":1}`)}
	assert.Equal(t, "{\n  \"a\": 1\n}", r.String())
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
}
