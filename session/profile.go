package session

// Profile is one browser fingerprint configuration used to diversify
// sessions: user agent, platform, viewport, locale and timezone.
type Profile struct {
	Name           string
	UserAgent      string
	Platform       string
	Vendor         string
	ViewportWidth  int
	ViewportHeight int
	Languages      []string
	Locale         string
	Timezone       string
}

// DefaultProfiles returns the built-in fingerprint pool.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name: "chrome-windows",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Platform:       "Win32",
			Vendor:         "Google Inc.",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Languages:      []string{"en-US", "en"},
			Locale:         "en-US",
			Timezone:       "America/New_York",
		},
		{
			Name: "chrome-macos",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Platform:       "MacIntel",
			Vendor:         "Google Inc.",
			ViewportWidth:  1680,
			ViewportHeight: 1050,
			Languages:      []string{"en-US", "en"},
			Locale:         "en-US",
			Timezone:       "America/Los_Angeles",
		},
		{
			Name: "safari-ios",
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_3_1 like Mac OS X) AppleWebKit/605.1.15 " +
				"(KHTML, like Gecko) Version/17.3.1 Mobile/15E148 Safari/604.1",
			Platform:       "iPhone",
			Vendor:         "Apple Computer, Inc.",
			ViewportWidth:  390,
			ViewportHeight: 844,
			Languages:      []string{"en-US", "en"},
			Locale:         "en-US",
			Timezone:       "Europe/London",
		},
	}
}

// AcceptLanguage renders the profile's languages as an Accept-Language header.
func (p Profile) AcceptLanguage() string {
	switch len(p.Languages) {
	case 0:
		return "en-US,en;q=0.9"
	case 1:
		return p.Languages[0]
	default:
		return p.Languages[0] + "," + p.Languages[1] + ";q=0.9"
	}
}
