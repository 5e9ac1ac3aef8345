package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is one anti-detection-hardened scraping context bound to a
// fingerprint profile. A session is owned by exactly one job execution at
// a time; the manager enforces exclusivity.
//
// HTTP-based adapters use Client/NewRequest; browser-based adapters call
// Browser, which lazily starts a Chrome instance configured with the
// profile and applies the fingerprint bundle once.
type Session struct {
	Profile Profile
	Domain  string

	client    *http.Client
	chromeBin string

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// Client returns the session's HTTP client. The client carries the
// domain-and-profile cookie jar so cookies survive reuse of the same
// fingerprint without ever crossing fingerprints.
func (s *Session) Client() *http.Client {
	return s.client
}

// NewRequest builds a request with the profile's identifying headers set.
func (s *Session) NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.Profile.UserAgent)
	req.Header.Set("Accept-Language", s.Profile.AcceptLanguage())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	return req, nil
}

// Browser returns a chromedp context for the session's browser tab,
// starting the browser and applying the fingerprint on first use. The
// browser lives until the session is released.
func (s *Session) Browser() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tabCtx != nil {
		return s.tabCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(s.Profile.ViewportWidth, s.Profile.ViewportHeight),
		chromedp.UserAgent(s.Profile.UserAgent),
	)
	if s.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(s.chromeBin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(tabCtx, s.Profile.FingerprintActions()...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("session: apply fingerprint: %w", err)
	}

	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	return s.tabCtx, nil
}

// NewTab opens an auxiliary tab in the same browser, with the fingerprint
// applied. Callers must invoke the cancel func to close the tab and hand
// focus back to the main tab.
func (s *Session) NewTab() (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	main := s.tabCtx
	s.mu.Unlock()

	if main == nil {
		return nil, nil, fmt.Errorf("session: browser not started")
	}

	tab, cancel := chromedp.NewContext(main)
	if err := chromedp.Run(tab, s.Profile.FingerprintActions()...); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("session: fingerprint aux tab: %w", err)
	}
	return tab, cancel, nil
}

// close tears the browser down. Called by the manager on release.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tabCancel != nil {
		s.tabCancel()
		s.tabCancel = nil
		s.tabCtx = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
}

func newHTTPClient(jar http.CookieJar, timeout time.Duration) *http.Client {
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}
