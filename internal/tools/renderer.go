package tools

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rahul/stratagent/internal/governance"
)

// ChromeRenderer loads a page in headless Chrome so that landing pages
// built by scripts have text to import. Every request the page makes is
// paused and checked with Allow before it goes out.
type ChromeRenderer struct {
	// ExecPath overrides the Chrome binary found on PATH.
	ExecPath string
	// Settle is how long scripts get after the body is ready.
	Settle  time.Duration
	Timeout time.Duration
	Allow   func(ctx context.Context, rawURL string) error
}

func NewChromeRenderer(execPath string) *ChromeRenderer {
	return &ChromeRenderer{
		ExecPath: execPath,
		Settle:   2 * time.Second,
		Timeout:  45 * time.Second,
		Allow:    CheckPublicURL,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	if err := r.Allow(ctx, rawURL); err != nil {
		return "", err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	runCtx, cancel := context.WithTimeout(browserCtx, r.Timeout)
	defer cancel()

	chromedp.ListenTarget(runCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(runCtx)
			execCtx := cdp.WithExecutor(runCtx, c.Target)
			if err := r.Allow(runCtx, paused.Request.URL); err != nil {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
				return
			}
			_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
		}()
	})

	var html string
	err := chromedp.Run(runCtx,
		fetch.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chrome: %w", err)
	}
	return html, nil
}

// CheckPublicURL refuses non-web schemes and hosts that are, or resolve
// to, restricted addresses.
func CheckPublicURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
	case "data", "blob":
		return nil
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if governance.RestrictedHost(host) {
		return fmt.Errorf("%w: %s", governance.ErrRestrictedAddress, host)
	}
	if net.ParseIP(host) != nil {
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if governance.IsRestrictedIP(a.IP) {
			return fmt.Errorf("%w: %s resolves to %s", governance.ErrRestrictedAddress, host, a.IP)
		}
	}
	return nil
}
