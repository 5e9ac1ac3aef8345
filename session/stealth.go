package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript builds the anti-detection script injected into every new
// document before any page script runs. It hides the webdriver flag,
// replaces the automation-revealing navigator properties with the
// profile's fingerprint, fakes a plugin list and pins the WebGL vendor.
// Versioned as a single bundle so all adapters share identical behavior.
func stealthScript(p Profile) string {
	langs := make([]string, 0, len(p.Languages))
	for _, l := range p.Languages {
		langs = append(langs, fmt.Sprintf("%q", l))
	}

	return fmt.Sprintf(`
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => [%s] });
Object.defineProperty(navigator, 'platform', { get: () => %q });
Object.defineProperty(navigator, 'vendor', { get: () => %q });
Object.defineProperty(navigator, 'plugins', {
	get: () => [
		{ name: 'Chrome PDF Plugin' },
		{ name: 'Chrome PDF Viewer' },
		{ name: 'Native Client' }
	]
});

delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;

const getParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function(parameter) {
	if (parameter === 37445) return 'Intel Inc.';
	if (parameter === 37446) return 'Intel Iris OpenGL Engine';
	return getParameter.call(this, parameter);
};
`, strings.Join(langs, ", "), p.Platform, p.Vendor)
}

// FingerprintActions returns the chromedp actions that apply the profile's
// fingerprint to a browser target. Run once per tab, before navigation.
func (p Profile) FingerprintActions() []chromedp.Action {
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript(p)).Do(ctx)
			return err
		}),
		emulation.SetUserAgentOverride(p.UserAgent).
			WithAcceptLanguage(p.AcceptLanguage()).
			WithPlatform(p.Platform),
		emulation.SetTimezoneOverride(p.Timezone),
		chromedp.EmulateViewport(int64(p.ViewportWidth), int64(p.ViewportHeight)),
	}
}
