// Package favicon implements best-effort favicon discovery for feed sites.
// Failures here never matter to callers beyond the missing icon.
package favicon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// defaultLookupURL is the third-party favicon lookup used as the last resort,
// %s is replaced with the site host
const defaultLookupURL = "https://icons.duckduckgo.com/ip3/%s.ico"

// Finder discovers a site's favicon URL
type Finder struct {
	client    *http.Client
	userAgent string
	lookupURL string
}

// NewFinder creates a favicon finder. lookupURL overrides the third-party
// fallback template, empty means the default.
func NewFinder(timeout time.Duration, userAgent, lookupURL string) *Finder {
	if lookupURL == "" {
		lookupURL = defaultLookupURL
	}
	return &Finder{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		lookupURL: lookupURL,
	}
}

// Find tries, in order: icon links declared in the site's HTML, the
// conventional /favicon.ico location, and the third-party lookup service.
// Returns the first reachable candidate.
func (f *Finder) Find(ctx context.Context, siteURL string) (string, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid site URL %q", siteURL)
	}

	if icon := f.fromHTML(ctx, parsed); icon != "" {
		return icon, nil
	}

	icoURL := parsed.Scheme + "://" + parsed.Host + "/favicon.ico"
	if f.reachable(ctx, icoURL) {
		return icoURL, nil
	}

	lookup := fmt.Sprintf(f.lookupURL, parsed.Host)
	if f.reachable(ctx, lookup) {
		return lookup, nil
	}

	return "", fmt.Errorf("no favicon found for %s", parsed.Host)
}

// fromHTML fetches the site page and scans it for <link rel="icon"> declarations
func (f *Finder) fromHTML(ctx context.Context, site *url.URL) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site.String(), http.NoBody)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return ""
	}

	href := findIconLink(doc)
	if href == "" {
		return ""
	}

	iconURL, err := site.Parse(href) // resolves relative hrefs
	if err != nil {
		return ""
	}
	return iconURL.String()
}

// findIconLink walks the parsed document for the first <link> whose rel mentions icon
func findIconLink(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "link" {
		var rel, href string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "rel":
				rel = strings.ToLower(attr.Val)
			case "href":
				href = attr.Val
			}
		}
		if strings.Contains(rel, "icon") && href != "" {
			return href
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findIconLink(c); found != "" {
			return found
		}
	}
	return ""
}

// reachable checks a candidate icon URL answers with a non-empty 200
func (f *Finder) reachable(ctx context.Context, iconURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
