// Package urlkey derives stable identities from request URLs: the
// canonical cache key and the pacing domain.
package urlkey

import (
	"net/url"
	"sort"
	"strings"
)

// UnknownDomain pools URLs whose host cannot be determined, so malformed
// input is still rate limited rather than exempt.
const UnknownDomain = "unknown"

// paramWhitelist lists the query parameters that affect page content
// (search query, pagination, sorting, price filters). Everything else,
// tracking and session parameters in particular, is dropped so that
// cosmetically different URLs share one cache entry.
var paramWhitelist = map[string]struct{}{
	"k":       {}, // search query (Amazon)
	"q":       {}, // search query (generic)
	"rh":      {}, // price filters (Amazon)
	"p":       {}, // page (Amazon)
	"page":    {}, // page (generic)
	"s":       {}, // sort (Amazon)
	"sort":    {}, // sort (generic)
	"orderId": {}, // sort (Mercado Livre)
}

// Canonicalize maps a URL to its cache key. Scheme, host and full path are
// kept (product variants live in the path and must not collapse), whitelisted
// query parameters are whitespace-normalized and sorted, and the fragment is
// dropped. The function is pure and idempotent.
func Canonicalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	kept := url.Values{}
	for key, values := range u.Query() {
		if _, ok := paramWhitelist[key]; !ok {
			continue
		}
		for _, v := range values {
			if v == "" {
				continue
			}
			kept.Add(key, strings.Join(strings.Fields(v), " "))
		}
	}

	var query string
	if len(kept) > 0 {
		query = encodeSorted(kept)
	}

	canon := url.URL{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     strings.ToLower(u.Host),
		Path:     u.Path,
		RawQuery: query,
	}
	return canon.String()
}

// encodeSorted renders values ordered by key name so equal parameter sets
// always produce byte-identical keys. url.Values.Encode already sorts keys;
// kept separate so the sorting contract is explicit at the call site.
func encodeSorted(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// Domain extracts the lower-cased host used for per-domain pacing.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return UnknownDomain
	}
	return strings.ToLower(u.Host)
}

// Platform names the marketplace a URL belongs to: the host without a
// leading "www." prefix.
func Platform(raw string) string {
	d := Domain(raw)
	if d == UnknownDomain {
		return d
	}
	return strings.TrimPrefix(d, "www.")
}
