// Package document fetches the pages shown in the host surfaces and reduces
// them to a title and readable text.
package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
)

// MaxDocumentSize bounds what the loader will read.
const MaxDocumentSize = 10 * 1024 * 1024

type Document struct {
	Source string
	Title  string
	Text   string
}

type Loader struct {
	client    *resty.Client
	sanitizer *bluemonday.Policy
}

func NewLoader() *Loader {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", "Alice-Desktop/1.0")

	return &Loader{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Load reads target, which is an http(s) URL, a file:// URL or a plain path.
func (l *Loader) Load(ctx context.Context, target string) (Document, error) {
	raw, err := l.fetch(ctx, target)
	if err != nil {
		return Document{}, err
	}
	if len(raw) > MaxDocumentSize {
		return Document{}, fmt.Errorf("document %s exceeds %d bytes", target, MaxDocumentSize)
	}

	doc, err := l.Parse(raw)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	doc.Source = target
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, target string) ([]byte, error) {
	switch {
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		resp, err := l.client.R().SetContext(ctx).Get(target)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if code := resp.StatusCode(); code < 200 || code >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s (url: %s)", code, resp.Status(), target)
		}
		return resp.Body(), nil
	default:
		path, err := LocalPath(target)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		return data, nil
	}
}

// Parse extracts the title and visible text of an HTML page.
func (l *Loader) Parse(raw []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Document{}, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, template").Remove()
	doc.Find("p, div, br, li, tr, h1, h2, h3, h4, h5, h6, section, article").AfterHtml("\n")

	body := doc.Find("body")
	markup, err := body.Html()
	if err != nil || body.Length() == 0 {
		markup, err = doc.Html()
		if err != nil {
			return Document{}, err
		}
	}

	text := html.UnescapeString(l.sanitizer.Sanitize(markup))
	return Document{Title: title, Text: collapse(text)}, nil
}

// LocalPath turns a file:// URL or plain path into a filesystem path.
func LocalPath(target string) (string, error) {
	if !strings.HasPrefix(target, "file://") {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse document url: %w", err)
	}
	return filepath.FromSlash(u.Path), nil
}

func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
