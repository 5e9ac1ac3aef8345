package gridsite

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"market-scanner/models"
)

// Selector strategy lists, highest priority first. The first strategy
// yielding a non-empty value wins; a field matching none is left absent.
// Defaulting is the normalizer's job, not extraction's.
var (
	cardContainerSelectors = []string{
		"[data-listing-number]",
		".js_resultTile",
		".result-tile",
		".listing-result",
	}
	noResultsSelectors = []string{
		".js_noResults",
		".no-results-message",
		"[data-testid='no-results']",
	}

	titleSelectors = []string{
		".listing-title",
		"span[itemprop='name']",
		".result-title",
	}
	priceSelectors = []string{
		"span[itemprop='price']",
		".listing-price",
		".result-price",
	}
	locationSelectors = []string{
		".listing-location",
		".result-location",
	}
	addressSelectors = []string{
		".listing-address",
		"span[itemprop='address']",
	}
	sizeSelectors = []string{
		".listing-size span:last-child",
		".result-size",
	}
	descriptionSelectors = []string{
		".listing-excerpt",
		".result-description",
	}
)

// card is the browser-side extraction result for one grid tile.
type card struct {
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Location    string `json:"location"`
	Address     string `json:"address"`
	Bedrooms    string `json:"bedrooms"`
	Bathrooms   string `json:"bathrooms"`
	Size        string `json:"size"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// extractCards runs one in-page script over all card tiles. Feature cells
// (bedrooms/bathrooms) are looked up by their title attribute, the rest of
// the fields through the strategy lists above.
func extractCards(ctx context.Context, limit int) ([]card, error) {
	script := fmt.Sprintf(`
		(function() {
			var pick = function(root, sels) {
				for (var i = 0; i < sels.length; i++) {
					var el = root.querySelector(sels[i]);
					if (!el) continue;
					var txt = (el.innerText || el.getAttribute('content') || '').trim();
					if (txt) return txt;
				}
				return '';
			};
			var feature = function(root, name) {
				var cells = root.querySelectorAll('.listing-feature, .p24_featureDetails');
				for (var i = 0; i < cells.length; i++) {
					if ((cells[i].getAttribute('title') || '') === name) {
						var v = cells[i].querySelector('span:last-child');
						if (v && v.innerText.trim()) return v.innerText.trim();
					}
				}
				return '';
			};

			var tiles = [];
			var containers = [%s];
			for (var ci = 0; ci < containers.length; ci++) {
				tiles = document.querySelectorAll(containers[ci]);
				if (tiles.length > 0) break;
			}

			var results = [];
			var seen = {};
			for (var t = 0; t < tiles.length && results.length < %d; t++) {
				var tile = tiles[t];
				var link = tile.querySelector("a[href*='/to-rent/']") || tile.querySelector('a[href]');
				var url = link ? link.href : '';
				if (!url || seen[url]) continue;
				seen[url] = true;

				var desc = '';
				var descEl = null;
				var descSels = [%s];
				for (var d = 0; d < descSels.length; d++) {
					descEl = tile.querySelector(descSels[d]);
					if (descEl) break;
				}
				if (descEl) {
					desc = (descEl.getAttribute('title') || descEl.innerText || '').trim();
				}

				results.push({
					externalId:  tile.getAttribute('data-listing-number') || '',
					title:       pick(tile, [%s]),
					price:       pick(tile, [%s]),
					location:    pick(tile, [%s]),
					address:     pick(tile, [%s]),
					bedrooms:    feature(tile, 'Bedrooms'),
					bathrooms:   feature(tile, 'Bathrooms'),
					size:        pick(tile, [%s]),
					url:         url,
					description: desc
				});
			}
			return results;
		})()`,
		jsStringList(cardContainerSelectors),
		limit,
		jsStringList(descriptionSelectors),
		jsStringList(titleSelectors),
		jsStringList(priceSelectors),
		jsStringList(locationSelectors),
		jsStringList(addressSelectors),
		jsStringList(sizeSelectors),
	)

	var cards []card
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, &models.ExtractionError{What: "evaluate card extraction", Err: err}
	}
	return cards, nil
}

// toRawRecord maps the extraction result into a RawRecord, leaving missing
// fields absent.
func (c card) toRawRecord() *models.RawRecord {
	rec := models.NewRawRecord(SourceID)
	rec.Set("external_id", models.Str(c.ExternalID))
	rec.Set("title", models.Str(c.Title))
	rec.Set("rental_price", models.Str(c.Price))
	rec.Set("location", models.Str(c.Location))
	rec.Set("address", models.Str(c.Address))
	rec.Set("beds", models.Str(c.Bedrooms))
	rec.Set("baths", models.Str(c.Bathrooms))
	rec.Set("size", models.Str(c.Size))
	rec.Set("url", models.Str(c.URL))
	rec.Set("description", models.Str(c.Description))
	return rec
}

func jsStringList(sels []string) string {
	quoted := make([]string, 0, len(sels))
	for _, s := range sels {
		quoted = append(quoted, fmt.Sprintf("%q", s))
	}
	return strings.Join(quoted, ", ")
}
