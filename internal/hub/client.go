package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const DefaultEndpoint = "https://huggingface.co"

// Options configures a Client. Zero values select hub defaults.
type Options struct {
	Endpoint   string
	Token      string
	Revision   string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Progress receives per-file progress bars. Nil disables them.
	Progress io.Writer
}

// Client is the hub transport. It holds no mutable state and is safe to share.
type Client struct {
	endpoint string
	token    string
	revision string
	http     *http.Client
	// meta never follows redirects so LFS headers on the first hop stay visible.
	meta     *http.Client
	log      *slog.Logger
	progress io.Writer
}

func NewClient(opts Options) *Client {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	revision := opts.Revision
	if revision == "" {
		revision = "main"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}
	meta := *httpClient
	meta.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: endpoint,
		token:    opts.Token,
		revision: revision,
		http:     httpClient,
		meta:     &meta,
		log:      logger,
		progress: opts.Progress,
	}
}

// Revision is the branch, tag or commit the client reads from and commits to.
func (c *Client) Revision() string { return c.revision }

func (c *Client) resolveURL(repo Repo, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		c.endpoint, repo.webPath(), url.PathEscape(c.revision), escapeSegments(filename))
}

func (c *Client) treeURL(repo Repo) string {
	return fmt.Sprintf("%s/api/%s/tree/%s?recursive=true",
		c.endpoint, repo.apiPath(), url.PathEscape(c.revision))
}

func (c *Client) commitURL(repo Repo) string {
	return fmt.Sprintf("%s/api/%s/commit/%s",
		c.endpoint, repo.apiPath(), url.PathEscape(c.revision))
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setAuth(req, c.token)
	return req, nil
}

func setAuth(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
