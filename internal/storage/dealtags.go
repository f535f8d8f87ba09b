package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

type dealTag struct {
	DealID   string `firestore:"deal"`
	TagID    string `firestore:"tag"`
	Position int    `firestore:"position"`
}

func dealTagDocID(dealID, tagID string) string {
	return dealID + "_" + tagID
}

// SetDealTags replaces the tags of a deal, keeping the order of tagIDs.
func (c *Client) SetDealTags(ctx context.Context, dealID string, tagIDs []string) error {
	if _, err := c.DeleteTagsOfDeal(ctx, dealID); err != nil {
		return err
	}
	tagIDs = dedupe(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	batch := c.client.Batch()
	coll := c.client.Collection(dealTagsCollection)
	for i, tagID := range tagIDs {
		batch.Set(coll.Doc(dealTagDocID(dealID, tagID)), dealTag{DealID: dealID, TagID: tagID, Position: i})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to tag deal %s: %w", dealID, err)
	}
	return nil
}

// TagIDsOfDeal returns the tag ids of a deal in the order they were attached.
func (c *Client) TagIDsOfDeal(ctx context.Context, dealID string) ([]string, error) {
	q := c.client.Collection(dealTagsCollection).
		Where("deal", "==", dealID).
		OrderBy("position", firestore.Asc)
	rows, err := queryAll(ctx, q, func(*dealTag, string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of deal %s: %w", dealID, err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.TagID
	}
	return ids, nil
}

// DealIDsWithTag returns the ids of every deal carrying tagID.
func (c *Client) DealIDsWithTag(ctx context.Context, tagID string) ([]string, error) {
	q := c.client.Collection(dealTagsCollection).Where("tag", "==", tagID)
	rows, err := queryAll(ctx, q, func(*dealTag, string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals with tag %s: %w", tagID, err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.DealID
	}
	return ids, nil
}

func (c *Client) DeleteTagsOfDeal(ctx context.Context, dealID string) (int, error) {
	n, err := c.deleteWhere(ctx, c.client.Collection(dealTagsCollection).Where("deal", "==", dealID))
	if err != nil {
		return 0, fmt.Errorf("failed to untag deal %s: %w", dealID, err)
	}
	return n, nil
}
