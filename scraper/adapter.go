package scraper

import (
	"context"
	"net/url"

	"market-scanner/models"
	"market-scanner/session"
)

// Adapter is the common capability every vendor source implements: given a
// job and a lent session, produce the vendor-shaped records for one area.
// Adapters extract, they do not interpret; defaulting and coercion belong
// to the normalizer. An empty slice with a nil error is a genuine "area
// has no listings" result, distinct from any error.
type Adapter interface {
	SourceID() string
	Domain() string
	Fetch(ctx context.Context, job models.Job, sess *session.Session) ([]*models.RawRecord, error)
}

// HostOf extracts the host from a base URL for rate-limiting keys.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
