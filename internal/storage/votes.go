package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func voteDocID(userID, dealID string) string {
	return userID + "_" + dealID
}

// voteDelta is the change to a deal's aggregate when a user moves from prev to dir.
func voteDelta(prev, dir int) int {
	return dir - prev
}

// Direction returns the viewer's current vote on a deal, 0 when none.
func (c *Client) Direction(ctx context.Context, userID, dealID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	v, err := getByID(ctx, c.client.Collection(votesCollection).Doc(voteDocID(userID, dealID)), func(*models.Vote, string) {})
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return v.Dir, nil
}

// Vote records dir for (userID, dealID) and returns the deal's new aggregate.
func (c *Client) Vote(ctx context.Context, userID, dealID string, dir int) (int, error) {
	if dir < -1 || dir > 1 {
		return 0, fmt.Errorf("vote direction %d out of range", dir)
	}
	voteRef := c.client.Collection(votesCollection).Doc(voteDocID(userID, dealID))
	totalRef := c.client.Collection(dealVotesCollection).Doc(dealID)

	var total int
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		prev := 0
		voteDoc, err := tx.Get(voteRef)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil && voteDoc.Exists() {
			var v models.Vote
			if err := voteDoc.DataTo(&v); err != nil {
				return err
			}
			prev = v.Dir
		}
		totalDoc, err := tx.Get(totalRef)
		if err != nil && !isNotFound(err) {
			return err
		}
		current := 0
		if err == nil && totalDoc.Exists() {
			var dv models.DealVote
			if err := totalDoc.DataTo(&dv); err != nil {
				return err
			}
			current = dv.Votes
		}

		delta := voteDelta(prev, dir)
		total = current + delta
		if err := tx.Set(voteRef, models.Vote{UserID: userID, DealID: dealID, Dir: dir}); err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}
		return tx.Set(totalRef, map[string]any{
			"deal":  dealID,
			"votes": firestore.Increment(delta),
		}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record vote on deal %s: %w", dealID, err)
	}
	return total, nil
}

// VoteCounts returns the aggregate of each deal in ids. Deals without votes are absent.
func (c *Client) VoteCounts(ctx context.Context, ids []string) (map[string]int, error) {
	totals, err := getAllByIDs(ctx, c.client, dealVotesCollection, ids, func(dv *models.DealVote, id string) { dv.DealID = id })
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(totals))
	for _, dv := range totals {
		counts[dv.DealID] = dv.Votes
	}
	return counts, nil
}

// SortByVotes returns ids ordered by aggregate descending, ties kept in input order.
// A limit <= 0 keeps every id.
func (c *Client) SortByVotes(ctx context.Context, ids []string, limit int) ([]string, error) {
	counts, err := c.VoteCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	return sortIDsByCount(ids, counts, limit), nil
}

func sortIDsByCount(ids []string, counts map[string]int, limit int) []string {
	sorted := slices.Clone(ids)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// DeleteVotesOfDeal removes every vote on a deal and its aggregate.
func (c *Client) DeleteVotesOfDeal(ctx context.Context, dealID string) error {
	if _, err := c.deleteWhere(ctx, c.client.Collection(votesCollection).Where("deal", "==", dealID)); err != nil {
		return fmt.Errorf("failed to delete votes of deal %s: %w", dealID, err)
	}
	if _, err := c.client.Collection(dealVotesCollection).Doc(dealID).Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete vote total of deal %s: %w", dealID, err)
	}
	return nil
}
