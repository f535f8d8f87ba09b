package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func setRestaurantID(r *models.Restaurant, id string) { r.ID = id }

func (c *Client) CreateRestaurant(ctx context.Context, r models.Restaurant) (*models.Restaurant, error) {
	ref := c.client.Collection(restaurantsCollection).NewDoc()
	r.ID = ref.ID
	r.NameLower = strings.ToLower(r.Name)
	if _, err := ref.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	return &r, nil
}

func (c *Client) GetRestaurantByID(ctx context.Context, id string) (*models.Restaurant, error) {
	return getByID(ctx, c.client.Collection(restaurantsCollection).Doc(id), setRestaurantID)
}

func (c *Client) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]models.Restaurant, error) {
	return getAllByIDs(ctx, c.client, restaurantsCollection, ids, setRestaurantID)
}

// UpdateRestaurant changes the name and photo when set. Returns (nil, nil) when
// the restaurant does not exist.
func (c *Client) UpdateRestaurant(ctx context.Context, r models.Restaurant) (*models.Restaurant, error) {
	var updates []firestore.Update
	if r.Name != "" {
		updates = append(updates,
			firestore.Update{Path: "name", Value: r.Name},
			firestore.Update{Path: "nameLowercase", Value: strings.ToLower(r.Name)},
		)
	}
	if r.PhotoURL != "" {
		updates = append(updates, firestore.Update{Path: "photoUrl", Value: r.PhotoURL})
	}
	if len(updates) == 0 {
		return c.GetRestaurantByID(ctx, r.ID)
	}
	if _, err := c.client.Collection(restaurantsCollection).Doc(r.ID).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update restaurant %s: %w", r.ID, err)
	}
	return c.GetRestaurantByID(ctx, r.ID)
}

func (c *Client) DeleteRestaurant(ctx context.Context, id string) error {
	if _, err := c.client.Collection(restaurantsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete restaurant %s: %w", id, err)
	}
	return nil
}
