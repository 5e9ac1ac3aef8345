// Package gridsite scrapes the long-term-rental listing grid: a
// server-rendered search page behind anti-bot defenses that only populates
// its cards after JS runs, driven through a hardened browser session.
package gridsite

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"market-scanner/models"
	"market-scanner/scraper"
	"market-scanner/session"
	"market-scanner/utils"
)

const SourceID = "rental-grid"

// Config carries the adapter's tunables.
type Config struct {
	BaseURL     string
	MaxRecords  int
	PageWait    time.Duration
	EnrichLimit int
}

// Adapter drives a browser session to the grid search page, waits for the
// card container, simulates human scrolling to trigger lazy loading, and
// extracts one RawRecord per card through prioritized selector strategies.
// Cards missing structured fields are enriched from their detail pages.
type Adapter struct {
	log         *utils.Logger
	baseURL     string
	maxRecords  int
	pageWait    time.Duration
	enrichLimit int
}

// New builds the rendered-grid adapter.
func New(log *utils.Logger, cfg Config) *Adapter {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 30
	}
	if cfg.PageWait <= 0 {
		cfg.PageWait = 20 * time.Second
	}
	if cfg.EnrichLimit <= 0 {
		cfg.EnrichLimit = 10
	}
	return &Adapter{
		log:         log,
		baseURL:     cfg.BaseURL,
		maxRecords:  cfg.MaxRecords,
		pageWait:    cfg.PageWait,
		enrichLimit: cfg.EnrichLimit,
	}
}

func (a *Adapter) SourceID() string { return SourceID }

func (a *Adapter) Domain() string { return scraper.HostOf(a.baseURL) }

// Fetch loads the area's grid page and extracts its cards. Zero cards with
// the vendor's no-results banner present is a genuine empty area; zero
// cards without the banner means the grid never rendered for us, treated
// as a block, since this vendor always shows the banner on true misses.
func (a *Adapter) Fetch(ctx context.Context, job models.Job, sess *session.Session) ([]*models.RawRecord, error) {
	if job.SearchTerm == "" && job.AreaName == "" {
		return nil, &models.ValidationError{Reason: "rental-grid job requires an area"}
	}

	browser, err := sess.Browser()
	if err != nil {
		return nil, &models.TransportError{Op: "start browser", Err: err}
	}

	pageURL := a.searchURL(job)
	a.log.Debug("[gridsite] %s: loading %s", job.AreaName, pageURL)

	navCtx, cancel := context.WithTimeout(browser, a.pageWait+30*time.Second)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
		return nil, &models.TransportError{Op: "navigate grid page", Err: err}
	}

	state, err := a.waitForGrid(navCtx)
	if err != nil {
		return nil, err
	}
	switch state {
	case gridEmpty:
		a.log.Info("[gridsite] %s: vendor reports no listings", job.AreaName)
		return []*models.RawRecord{}, nil
	case gridBlocked:
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "card container never appeared"}
	}

	if err := a.humanScroll(navCtx); err != nil {
		// Scroll failures degrade extraction but are not fatal.
		a.log.Warn("[gridsite] %s: scroll simulation failed: %v", job.AreaName, err)
	}

	cards, err := extractCards(navCtx, a.maxRecords)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "container present but zero extractable cards"}
	}

	records := make([]*models.RawRecord, 0, len(cards))
	for _, c := range cards {
		records = append(records, c.toRawRecord())
	}

	a.enrich(navCtx, sess, records)
	return records, nil
}

type gridState int

const (
	gridReady gridState = iota
	gridEmpty
	gridBlocked
)

// waitForGrid polls until the card container or the no-results banner is
// present, bounded by the configured page wait.
func (a *Adapter) waitForGrid(ctx context.Context) (gridState, error) {
	var state string
	poll := fmt.Sprintf(`(function() {
		var sels = [%s];
		for (var i = 0; i < sels.length; i++) {
			if (document.querySelector(sels[i])) return 'ready';
		}
		var empty = [%s];
		for (var j = 0; j < empty.length; j++) {
			if (document.querySelector(empty[j])) return 'empty';
		}
		return false;
	})()`, jsStringList(cardContainerSelectors), jsStringList(noResultsSelectors))

	waitCtx, cancel := context.WithTimeout(ctx, a.pageWait)
	defer cancel()

	err := chromedp.Run(waitCtx,
		chromedp.Poll(poll, &state, chromedp.WithPollingInterval(500*time.Millisecond)))
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			// The bounded wait elapsed: retryable timeout.
			return gridBlocked, nil
		}
		return gridBlocked, &models.TransportError{Op: "wait for grid", Err: err}
	}

	if state == "empty" {
		return gridEmpty, nil
	}
	return gridReady, nil
}

// humanScroll walks the page down in randomized steps with human pacing,
// then usually drifts part of the way back up. Triggers lazy-loaded cards.
func (a *Adapter) humanScroll(ctx context.Context) error {
	steps := 4 + rand.Intn(4)
	for i := 0; i < steps; i++ {
		amount := 250 + rand.Intn(350)
		err := chromedp.Run(ctx,
			chromedp.Evaluate(fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'smooth'})`, amount), nil),
			chromedp.Sleep(time.Duration(300+rand.Intn(700))*time.Millisecond),
		)
		if err != nil {
			return err
		}
	}

	if rand.Float64() < 0.7 {
		back := 2 + rand.Intn(3)
		for i := 0; i < back; i++ {
			amount := 150 + rand.Intn(250)
			err := chromedp.Run(ctx,
				chromedp.Evaluate(fmt.Sprintf(`window.scrollBy({top: -%d, behavior: 'smooth'})`, amount), nil),
				chromedp.Sleep(time.Duration(200+rand.Intn(500))*time.Millisecond),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Adapter) searchURL(job models.Job) string {
	return strings.TrimRight(a.baseURL, "/") + "/to-rent/" + areaSlug(job.AreaName)
}

func areaSlug(area string) string {
	slug := strings.ToLower(strings.TrimSpace(area))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(strings.ReplaceAll(slug, "--", "-"), "-")
}
