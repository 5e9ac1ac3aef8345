package gridsite

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"market-scanner/models"
	"market-scanner/normalize"
	"market-scanner/session"
)

var (
	bedroomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*bedroom`),
		regexp.MustCompile(`(?i)(\d+)\s*bed\b`),
		regexp.MustCompile(`(?i)(\d+)\s*br\b`),
		regexp.MustCompile(`(?i)\bstudio\b`),
	}
	bathroomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*bathroom`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*bath\b`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*ba\b`),
	}
)

// enrich backfills structured fields for cards that came off the grid
// without them, by opening each listing's detail page in an auxiliary tab
// of the same session and mining the free-text description and facility
// sections. The tab is always closed, success or failure, so session
// state never leaks tabs across jobs.
func (a *Adapter) enrich(ctx context.Context, sess *session.Session, records []*models.RawRecord) {
	enriched := 0
	for _, rec := range records {
		if enriched >= a.enrichLimit {
			break
		}
		if !needsEnrichment(rec) {
			continue
		}
		urlVal, ok := rec.Get("url")
		if !ok {
			continue
		}

		if err := a.enrichOne(ctx, sess, rec, urlVal.Str); err != nil {
			a.log.Warn("[gridsite] enrichment failed for %s: %v", urlVal.Str, err)
			continue
		}
		enriched++
	}
}

func (a *Adapter) enrichOne(ctx context.Context, sess *session.Session, rec *models.RawRecord, detailURL string) error {
	tab, closeTab, err := sess.NewTab()
	if err != nil {
		return err
	}
	defer closeTab()

	tabCtx, cancel := context.WithTimeout(tab, 45*time.Second)
	defer cancel()

	var description, facilities string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(detailURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`(function() {
			var sels = ['.listing-description', '.property-description', '.p24_description'];
			for (var i = 0; i < sels.length; i++) {
				var el = document.querySelector(sels[i]);
				if (el && el.innerText.trim()) return el.innerText.trim().substring(0, 2000);
			}
			return '';
		})()`, &description),
		chromedp.Evaluate(`(function() {
			var sels = ['.listing-features', '.property-features', '.facilities'];
			for (var i = 0; i < sels.length; i++) {
				var el = document.querySelector(sels[i]);
				if (el && el.innerText.trim()) return el.innerText.trim().substring(0, 1000);
			}
			return '';
		})()`, &facilities),
	)
	if err != nil {
		return &models.ExtractionError{What: "detail page " + detailURL, Err: err}
	}

	text := strings.TrimSpace(description + "\n" + facilities)
	if text == "" {
		return &models.ExtractionError{What: "detail page had no description or facilities"}
	}

	if _, ok := rec.Get("beds"); !ok {
		if beds, found := MineBedrooms(text); found {
			rec.Set("beds", models.Num(float64(beds)))
		}
	}
	if _, ok := rec.Get("baths"); !ok {
		if baths, found := MineBathrooms(text); found {
			rec.Set("baths", models.Num(baths))
		}
	}
	if _, ok := rec.Get("amenities"); !ok {
		if found := normalize.ExtractAmenities(text); len(found) > 0 {
			rec.Set("amenities", models.List(found...))
		}
	}
	if _, ok := rec.Get("description"); !ok && description != "" {
		rec.Set("description", models.Str(description))
	}
	return nil
}

func needsEnrichment(rec *models.RawRecord) bool {
	_, beds := rec.Get("beds")
	_, baths := rec.Get("baths")
	_, amen := rec.Get("amenities")
	return !beds || !baths || !amen
}

// MineBedrooms extracts a bedroom count from free text. "Studio" counts as
// zero bedrooms, which is why the found flag exists: 0 is a real value.
func MineBedrooms(text string) (int, bool) {
	for _, re := range bedroomPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) == 1 {
			return 0, true
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// MineBathrooms extracts a bathroom count from free text, allowing halves.
func MineBathrooms(text string) (float64, bool) {
	for _, re := range bathroomPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
