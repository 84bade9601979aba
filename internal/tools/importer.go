package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/stratagent/internal/governance"
)

// MaxImportChars bounds imported idea text, in characters.
const MaxImportChars = 20000

const (
	maxRedirects  = 5
	maxPageBytes  = 5 << 20
	truncatedNote = "\n... (content truncated) ..."
)

// PageRenderer returns the HTML of a page after its scripts have run.
type PageRenderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// IdeaImporter fetches a web page (a landing page, a pitch, an article) and
// turns its main content into raw idea text for the first stage.
type IdeaImporter struct {
	UserAgent string
	Client    *http.Client
	// Renderer, when set, is tried for pages whose static HTML has no
	// readable content.
	Renderer PageRenderer
}

func NewIdeaImporter() *IdeaImporter {
	return &IdeaImporter{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Client:    NewGuardedClient(30 * time.Second),
	}
}

// NewGuardedClient returns an HTTP client that only connects to public
// addresses. The check runs on every dial, so redirects and DNS answers
// pointing inside the network are refused too.
func NewGuardedClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: governance.DialControl,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would hide the real peer from the dial check.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			if governance.RestrictedHost(req.URL.Hostname()) {
				return fmt.Errorf("%w: redirect to %s", governance.ErrRestrictedAddress, req.URL.Hostname())
			}
			return nil
		},
	}
}

func (s *IdeaImporter) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	article, content, err := extract(bytes.NewReader(page), parsedURL)
	if content == "" && s.Renderer != nil {
		html, rerr := s.Renderer.Render(ctx, parsedURL.String())
		if rerr != nil {
			return "", fmt.Errorf("failed to render page: %w", rerr)
		}
		article, content, err = extract(strings.NewReader(html), parsedURL)
	}
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("no readable content at %s", parsedURL)
	}
	content = truncateChars(content, MaxImportChars)

	var sb strings.Builder
	if article.Title != "" {
		sb.WriteString(article.Title)
		sb.WriteString("\n\n")
	}
	if article.Excerpt != "" {
		sb.WriteString(truncateChars(article.Excerpt, MaxImportChars))
		sb.WriteString("\n\n")
	}
	sb.WriteString(content)
	return sb.String(), nil
}

// extract returns the page's article and its sanitised text.
func extract(r io.Reader, pageURL *url.URL) (readability.Article, string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return article, "", err
	}
	text := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	return article, strings.TrimSpace(text), nil
}

// truncateChars cuts s to at most n characters on a rune boundary.
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for count := 0; count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i] + truncatedNote
}

