package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func setDealID(d *models.Deal, id string) { d.ID = id }

// CreateDeal stores a new deal and stamps its creation time.
func (c *Client) CreateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error) {
	ref := c.client.Collection(dealsCollection).NewDoc()
	deal.ID = ref.ID
	deal.CreatedAt = models.FormatTimestamp(c.now(), c.loc)
	if _, err := ref.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}
	return &deal, nil
}

// GetDealByID retrieves a deal by its Firestore Document ID.
func (c *Client) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	return getByID(ctx, c.client.Collection(dealsCollection).Doc(id), setDealID)
}

// GetDealsByIDs returns the existing deals among ids, in the order of ids.
func (c *Client) GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error) {
	return getAllByIDs(ctx, c.client, dealsCollection, ids, setDealID)
}

// ListDeals returns every deal, newest first.
func (c *Client) ListDeals(ctx context.Context) ([]models.Deal, error) {
	q := c.client.Collection(dealsCollection).OrderBy("creationTimestamp", firestore.Desc)
	return queryAll(ctx, q, setDealID)
}

// DealsByPoster returns the deals posted by a user, newest first.
func (c *Client) DealsByPoster(ctx context.Context, posterID string) ([]models.Deal, error) {
	q := c.client.Collection(dealsCollection).
		Where("posterId", "==", posterID).
		OrderBy("creationTimestamp", firestore.Desc)
	return queryAll(ctx, q, setDealID)
}

// DealsByRestaurant returns the deals of a restaurant, newest first.
func (c *Client) DealsByRestaurant(ctx context.Context, restaurantID string) ([]models.Deal, error) {
	q := c.client.Collection(dealsCollection).
		Where("restaurantId", "==", restaurantID).
		OrderBy("creationTimestamp", firestore.Desc)
	return queryAll(ctx, q, setDealID)
}

// UpdateDeal applies the non-empty fields of deal. The poster never changes.
// Returns (nil, nil) when the deal does not exist.
func (c *Client) UpdateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error) {
	ref := c.client.Collection(dealsCollection).Doc(deal.ID)
	updates := dealUpdates(deal)
	if len(updates) == 0 {
		return c.GetDealByID(ctx, deal.ID)
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update deal %s: %w", deal.ID, err)
	}
	return c.GetDealByID(ctx, deal.ID)
}

func dealUpdates(deal models.Deal) []firestore.Update {
	var updates []firestore.Update
	add := func(path, value string) {
		if value != "" {
			updates = append(updates, firestore.Update{Path: path, Value: value})
		}
	}
	add("description", deal.Description)
	add("image", deal.Image)
	add("start", deal.Start)
	add("end", deal.End)
	add("source", deal.Source)
	add("restaurantId", deal.RestaurantID)
	add("announcementId", deal.AnnouncementID)
	return updates
}

func (c *Client) DeleteDeal(ctx context.Context, id string) error {
	if _, err := c.client.Collection(dealsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete deal %s: %w", id, err)
	}
	return nil
}

// DealIDsByPosters returns ids of deals posted by any of posterIDs, newest first.
func (c *Client) DealIDsByPosters(ctx context.Context, posterIDs []string, limit int) ([]string, error) {
	return c.dealIDsWhereIn(ctx, "posterId", posterIDs, limit)
}

// DealIDsByRestaurants returns ids of deals at any of restaurantIDs, newest first.
func (c *Client) DealIDsByRestaurants(ctx context.Context, restaurantIDs []string, limit int) ([]string, error) {
	return c.dealIDsWhereIn(ctx, "restaurantId", restaurantIDs, limit)
}

type stampedID struct {
	ID        string `firestore:"-"`
	CreatedAt string `firestore:"creationTimestamp"`
}

func (c *Client) dealIDsWhereIn(ctx context.Context, field string, values []string, limit int) ([]string, error) {
	values = dedupe(values)
	var stamped []stampedID
	for _, batch := range chunk(values, maxInValues) {
		q := c.client.Collection(dealsCollection).
			Select("creationTimestamp").
			Where(field, "in", batch).
			OrderBy("creationTimestamp", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		found, err := queryAll(ctx, q, func(s *stampedID, id string) { s.ID = id })
		if err != nil {
			return nil, fmt.Errorf("failed to query deals by %s: %w", field, err)
		}
		stamped = append(stamped, found...)
	}
	return mergeNewest(stamped, limit), nil
}

// mergeNewest orders per-batch results newest first and cuts to limit. Timestamps are
// fixed-width, so string order is chronological.
func mergeNewest(stamped []stampedID, limit int) []string {
	slices.SortStableFunc(stamped, func(a, b stampedID) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	ids := make([]string, 0, len(stamped))
	for _, s := range stamped {
		ids = append(ids, s.ID)
	}
	ids = dedupe(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
