package seo

import (
	"net/url"
	"strings"
)

// CountLinks splits links into internal and external by comparing each link's
// hostname with pageURL's. Relative links resolve against pageURL; links with a
// non-web scheme (mailto:, tel:, javascript:) are not counted.
func CountLinks(links []string, pageURL string) (internal, external int) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return 0, 0
	}
	host := strings.ToLower(base.Hostname())

	for _, raw := range links {
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if strings.ToLower(abs.Hostname()) == host {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}
