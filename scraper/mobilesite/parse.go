package mobilesite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"market-scanner/models"
)

// ParseResults classifies the results page and extracts property cards.
// Separated from Fetch so the extraction rules are testable on fixtures.
func ParseResults(doc *goquery.Document, domain string) ([]*models.RawRecord, error) {
	if doc.Find("#challenge-form, [data-testid='challenge']").Length() > 0 {
		return nil, &models.BlockedError{Domain: domain, Signal: "challenge interstitial"}
	}

	container := doc.Find("[data-testid='searchresults-list'], #search_results")
	if container.Length() == 0 {
		// No results container and no explicit empty banner: the page we
		// expected never rendered, which on this vendor means a block.
		if hasNoResultsBanner(doc.Selection) {
			return []*models.RawRecord{}, nil
		}
		return nil, &models.BlockedError{Domain: domain, Signal: "results container missing"}
	}

	if hasNoResultsBanner(container) {
		return []*models.RawRecord{}, nil
	}

	var records []*models.RawRecord
	container.Find("[data-testid='property-card']").Each(func(_ int, card *goquery.Selection) {
		rec := models.NewRawRecord(SourceID)

		rec.Set("title", models.Str(text(card, "[data-testid='title']")))
		rec.Set("current_price", models.Str(text(card, "[data-testid='price-and-discounted-price']")))
		rec.Set("rating", models.Str(text(card, "[data-testid='review-score'] .review-value")))
		rec.Set("review_count", models.Str(text(card, "[data-testid='review-count']")))
		rec.Set("address", models.Str(text(card, "[data-testid='address']")))

		if href, ok := card.Find("a[data-testid='title-link']").Attr("href"); ok {
			rec.Set("url", models.Str(strings.TrimSpace(href)))
		}

		var units []string
		card.Find("[data-testid='property-card-unit-configuration'] span").Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				units = append(units, t)
			}
		})
		rec.Set("unit_configuration", models.List(units...))

		if len(rec.Fields) > 0 {
			records = append(records, rec)
		}
	})

	return records, nil
}

func hasNoResultsBanner(s *goquery.Selection) bool {
	if s.Find("[data-testid='no-results']").Length() > 0 {
		return true
	}
	found := false
	s.Find("h1, h2, .no-results").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(h.Text()), "no properties found") {
			found = true
			return false
		}
		return true
	})
	return found
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}
