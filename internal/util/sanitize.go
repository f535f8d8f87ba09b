package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	descriptionPolicy = newDescriptionPolicy()
	plainPolicy       = bluemonday.StrictPolicy()
)

// Deal descriptions may keep basic formatting and links.
func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "p", "br", "ul", "ol", "li")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	return p
}

// SanitizeDescription keeps the formatting subset allowed in deal descriptions.
func SanitizeDescription(s string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(s))
}

// StripTags removes all markup, for comments, bios and names.
func StripTags(s string) string {
	// bluemonday escapes what it keeps; the stored value is plain text
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}
