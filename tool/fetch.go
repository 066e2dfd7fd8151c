package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// FetchURLTool fetches a URL over HTTP(S) and returns best-effort
// Markdown, using readability extraction when the page looks like an
// article. Registered unconditionally by NewRegistryWithDefaults.
type FetchURLTool struct {
	client *http.Client
}

func NewFetchURLTool() *FetchURLTool {
	return &FetchURLTool{client: &http.Client{Timeout: 20 * time.Second}}
}

func (t *FetchURLTool) Name() string        { return "fetch_url" }
func (t *FetchURLTool) Description() string { return "Fetch a web URL and return its content as Markdown." }

func (t *FetchURLTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http(s) URL to fetch."},
		},
		"required": []string{"url"},
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("fetch_url: invalid arguments: %w", err)
	}
	if args.URL == "" {
		return "", fmt.Errorf("fetch_url: url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch_url: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch_url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch_url: %s returned status %d", args.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("fetch_url: reading body: %w", err)
	}

	base, err := url.Parse(args.URL)
	if err != nil {
		return "", fmt.Errorf("fetch_url: parsing url: %w", err)
	}

	html := string(body)
	if art, rerr := readability.FromReader(strings.NewReader(html), base); rerr == nil && art.Content != "" {
		html = art.Content
	}

	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html, nil
	}
	return md, nil
}
