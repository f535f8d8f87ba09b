// Package scraper reads a deal's source page to find an image for deals posted
// without one.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealboard/internal/util"
)

const (
	maxPageBytes = 2 << 20
	maxRetries   = 2
)

// ErrDisallowedAddress is returned when a source URL resolves to a private, loopback
// or otherwise internal address.
var ErrDisallowedAddress = errors.New("address not allowed")

type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New creates a Client whose connections refuse internal addresses.
func New() *Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, Control: refuseInternal}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil
	return newClient(&http.Client{Timeout: 10 * time.Second, Transport: transport})
}

func newClient(hc *http.Client) *Client {
	return &Client{httpClient: hc, userAgent: "dealboard-preview/1.0"}
}

// refuseInternal runs after DNS resolution, so rebinding a public name to an internal
// address is caught too.
func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrDisallowedAddress, host)
	}
	return nil
}

// PreviewImage returns the absolute URL of the image the source page advertises for
// itself, or "" when it has none.
func (c *Client) PreviewImage(ctx context.Context, sourceURL string) (string, error) {
	var doc *goquery.Document
	err := util.RetryWithBackoff(ctx, maxRetries, func(attempt int) error {
		var err error
		doc, err = c.fetchHTMLContent(ctx, sourceURL)
		if err != nil && attempt < maxRetries {
			slog.Warn("Source page fetch failed, retrying", "url", sourceURL, "attempt", attempt+1, "error", err)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	base, _ := url.Parse(sourceURL)
	if canonical := doc.Url; canonical != nil {
		base = canonical
	}
	return findImage(doc, base), nil
}

// findImage tries the meta selectors in order, then JSON-LD.
func findImage(doc *goquery.Document, base *url.URL) string {
	for _, sel := range imageSelectors {
		val, ok := doc.Find(sel.query).First().Attr(sel.attr)
		if !ok {
			continue
		}
		if abs := absoluteHTTP(base, val); abs != "" {
			return abs
		}
	}
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, candidate := range jsonLDImages([]byte(s.Text())) {
			if abs := absoluteHTTP(base, candidate); abs != "" {
				found = abs
				return false
			}
		}
		return true
	})
	return found
}

// absoluteHTTP resolves ref against base and keeps it only if it is http(s).
func absoluteHTTP(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

func (c *Client) fetchHTMLContent(ctx context.Context, urlStr string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to parse URL %s: %w", urlStr, err))
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, util.Permanent(fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to create request for URL %s: %w", urlStr, err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrDisallowedAddress) {
			return nil, util.Permanent(err)
		}
		return nil, fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch URL %s: status code %d", urlStr, res.StatusCode)
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return nil, err
		}
		return nil, util.Permanent(err)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, util.Permanent(fmt.Errorf("URL %s is %s, not HTML", urlStr, ct))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to parse %s: %w", urlStr, err))
	}
	doc.Url = res.Request.URL
	return doc, nil
}
