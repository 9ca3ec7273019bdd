package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type ctxKey string

const (
	// LocaleKey carries the resolved UI locale ("fr" or "en").
	LocaleKey ctxKey = "locale"
	// CountryKey carries the ISO 3166-1 alpha-2 country code, if resolved.
	CountryKey ctxKey = "country"
)

// CountryLookup resolves an IP address to an ISO country code.
// Implementations may return "" when the address is unknown.
type CountryLookup interface {
	Country(ip net.IP) (string, error)
}

var supportedLocales = []language.Tag{
	language.French, // default
	language.English,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// francophone countries default to French when no explicit preference exists.
var francophone = map[string]bool{
	"FR": true, "BE": true, "LU": true, "CH": true, "MC": true,
	"CA": true, "SN": true, "CI": true, "MA": true, "TN": true,
	"DZ": true, "CM": true,
}

// I18N resolves the request locale and country and stores both in the
// request context. Resolution order: X-Locale header, Accept-Language,
// country heuristics, then the configured fallback.
func I18N(lookup CountryLookup, fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, fallback, country)

			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback, country string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return normalizeLocale(v)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		tag, _ := language.MatchStrings(localeMatcher, accept)
		base, _ := tag.Base()
		return normalizeLocale(base.String())
	}
	if country != "" {
		if francophone[country] {
			return "fr"
		}
		return "en"
	}
	if fallback != "" {
		return normalizeLocale(fallback)
	}
	return "fr"
}

// normalizeLocale collapses any locale string to one of the two supported
// UI locales.
func normalizeLocale(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return "fr"
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return "en"
	}
	if base.String() == "fr" {
		return "fr"
	}
	// Unsupported language: francophone product, English everywhere else.
	return "en"
}

// ResolveCountry tries proxy headers first, then a locale region hint,
// then GeoIP on the client address.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	for _, h := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		if v := strings.ToUpper(strings.TrimSpace(r.Header.Get(h))); len(v) == 2 && v != "XX" {
			return v
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := net.ParseIP(ClientIP(r)); ip != nil {
			if cc, err := lookup.Country(ip); err == nil && len(cc) == 2 {
				return strings.ToUpper(cc)
			}
		}
	}
	return ""
}

func localeRegion(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return ""
	}
	if region, conf := tag.Region(); conf != language.No && region.IsCountry() {
		return region.String()
	}
	return ""
}

// ClientIP extracts the originating client address, honoring forwarding
// headers set by the edge proxy.
func ClientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		parts := strings.Split(v, ",")
		return strings.TrimSpace(parts[0])
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LocaleFromContext returns the resolved locale, defaulting to French.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "fr"
}

// CountryFromContext returns the resolved country code, or "".
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}
