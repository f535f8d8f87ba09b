package storage

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealboard/internal/models"
)

var nonQueryChars = regexp.MustCompile(`[^a-zA-Z0-9_/\-]`)

type searchDoc struct {
	DealID    string   `firestore:"-"`
	Tokens    []string `firestore:"tokens"`
	Tags      []string `firestore:"tags"`
	CreatedAt string   `firestore:"creationTimestamp"`
}

// SanitizeQuery lowercases s and turns every character outside [a-zA-Z0-9-_/] into a space.
func SanitizeQuery(s string) string {
	return strings.ToLower(nonQueryChars.ReplaceAllString(s, " "))
}

// Tokenize splits sanitized text into distinct terms, first occurrence first.
func Tokenize(s string) []string {
	return dedupe(strings.Fields(SanitizeQuery(s)))
}

// plainText strips markup from a description so tags and attributes are not indexed.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}

// IndexDeal writes the search document of a deal, replacing any previous one.
func (c *Client) IndexDeal(ctx context.Context, deal models.Deal, tagIDs []string) error {
	doc := searchDoc{
		Tokens:    Tokenize(plainText(deal.Description)),
		Tags:      dedupe(tagIDs),
		CreatedAt: deal.CreatedAt,
	}
	if _, err := c.client.Collection(searchCollection).Doc(deal.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to index deal %s: %w", deal.ID, err)
	}
	return nil
}

func (c *Client) RemoveFromIndex(ctx context.Context, dealID string) error {
	if _, err := c.client.Collection(searchCollection).Doc(dealID).Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to unindex deal %s: %w", dealID, err)
	}
	return nil
}

// SearchDeals returns the ids of deals matching every term of query and carrying every
// tag in tagIDs, newest first. An empty query with no tags matches nothing.
func (c *Client) SearchDeals(ctx context.Context, query string, tagIDs []string) ([]string, error) {
	terms := Tokenize(query)
	tagIDs = dedupe(tagIDs)
	if len(terms) == 0 && len(tagIDs) == 0 {
		return nil, nil
	}

	coll := c.client.Collection(searchCollection)
	var docs []searchDoc
	var err error
	switch {
	case len(terms) > 0:
		docs, err = queryAll(ctx, coll.Where("tokens", "array-contains", terms[0]), setSearchDealID)
	default:
		docs, err = queryAll(ctx, coll.Where("tags", "array-contains", tagIDs[0]), setSearchDealID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search deals: %w", err)
	}
	return matchSearchDocs(docs, terms, tagIDs), nil
}

func setSearchDealID(d *searchDoc, id string) { d.DealID = id }

func matchSearchDocs(docs []searchDoc, terms, tagIDs []string) []string {
	var hits []searchDoc
	for _, d := range docs {
		if containsAll(d.Tokens, terms) && containsAll(d.Tags, tagIDs) {
			hits = append(hits, d)
		}
	}
	slices.SortStableFunc(hits, func(a, b searchDoc) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DealID
	}
	return ids
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
