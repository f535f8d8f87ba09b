package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/dealboard/internal/models"
)

func followDocID(kind models.FolloweeKind, followerID, followeeID string) string {
	return string(kind) + "_" + followerID + "_" + followeeID
}

// Follow records that followerID follows followeeID. Following twice is not an error.
func (c *Client) Follow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error {
	ref := c.client.Collection(followsCollection).Doc(followDocID(kind, followerID, followeeID))
	_, err := ref.Create(ctx, models.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		Kind:       kind,
		Since:      c.now(),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to follow %s %s: %w", kind, followeeID, err)
	}
	return nil
}

// Unfollow removes the edge if present.
func (c *Client) Unfollow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error {
	ref := c.client.Collection(followsCollection).Doc(followDocID(kind, followerID, followeeID))
	if _, err := ref.Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to unfollow %s %s: %w", kind, followeeID, err)
	}
	return nil
}

func (c *Client) IsFollowing(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) (bool, error) {
	f, err := getByID(ctx, c.client.Collection(followsCollection).Doc(followDocID(kind, followerID, followeeID)), func(*models.Follow, string) {})
	if err != nil {
		return false, err
	}
	return f != nil, nil
}

// FollowedIDs returns the ids of everything of kind that followerID follows, oldest edge first.
func (c *Client) FollowedIDs(ctx context.Context, followerID string, kind models.FolloweeKind) ([]string, error) {
	q := c.client.Collection(followsCollection).
		Where("follower", "==", followerID).
		Where("kind", "==", kind).
		OrderBy("since", firestore.Asc)
	edges, err := queryAll(ctx, q, func(*models.Follow, string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to list followed %ss of %s: %w", kind, followerID, err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FolloweeID
	}
	return ids, nil
}

// FollowerIDs returns the ids of the users following followeeID.
func (c *Client) FollowerIDs(ctx context.Context, kind models.FolloweeKind, followeeID string) ([]string, error) {
	q := c.client.Collection(followsCollection).
		Where("followee", "==", followeeID).
		Where("kind", "==", kind).
		OrderBy("since", firestore.Asc)
	edges, err := queryAll(ctx, q, func(*models.Follow, string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to list followers of %s %s: %w", kind, followeeID, err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return ids, nil
}

// SetFollowedTags makes userID follow exactly tagIDs, touching only the edges that change.
func (c *Client) SetFollowedTags(ctx context.Context, userID string, tagIDs []string) error {
	current, err := c.FollowedIDs(ctx, userID, models.FollowTag)
	if err != nil {
		return err
	}
	added, removed := diffIDs(current, tagIDs)
	for _, id := range added {
		if err := c.Follow(ctx, userID, models.FollowTag, id); err != nil {
			return err
		}
	}
	for _, id := range removed {
		if err := c.Unfollow(ctx, userID, models.FollowTag, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFollowersOf drops every edge pointing at followeeID.
func (c *Client) DeleteFollowersOf(ctx context.Context, kind models.FolloweeKind, followeeID string) error {
	q := c.client.Collection(followsCollection).
		Where("followee", "==", followeeID).
		Where("kind", "==", kind)
	if _, err := c.deleteWhere(ctx, q); err != nil {
		return fmt.Errorf("failed to delete followers of %s %s: %w", kind, followeeID, err)
	}
	return nil
}

// diffIDs returns the ids in want missing from have, and the ids in have missing from want.
func diffIDs(have, want []string) (added, removed []string) {
	inHave := make(map[string]bool, len(have))
	for _, id := range have {
		inHave[id] = true
	}
	inWant := make(map[string]bool, len(want))
	for _, id := range dedupe(want) {
		inWant[id] = true
		if !inHave[id] {
			added = append(added, id)
		}
	}
	for _, id := range have {
		if !inWant[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
