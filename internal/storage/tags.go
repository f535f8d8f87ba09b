package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func setTagID(t *models.Tag, id string) { t.ID = id }

func (c *Client) GetTagByID(ctx context.Context, id string) (*models.Tag, error) {
	return getByID(ctx, c.client.Collection(tagsCollection).Doc(id), setTagID)
}

// GetTagsByIDs returns the existing tags among ids, in the order of ids.
func (c *Client) GetTagsByIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	return getAllByIDs(ctx, c.client, tagsCollection, ids, setTagID)
}

// GetOrCreateTagByName returns the tag whose case-folded name matches, creating it if needed.
func (c *Client) GetOrCreateTagByName(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty tag name")
	}
	lower := strings.ToLower(name)
	coll := c.client.Collection(tagsCollection)

	var tag models.Tag
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(coll.Where("nameLowercase", "==", lower).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := docs[0].DataTo(&tag); err != nil {
				return err
			}
			tag.ID = docs[0].Ref.ID
			return nil
		}
		ref := coll.NewDoc()
		tag = models.Tag{ID: ref.ID, Name: name, NameLower: lower}
		return tx.Create(ref, tag)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create tag %q: %w", name, err)
	}
	return &tag, nil
}

// GetOrCreateTagsByNames resolves names to tags, skipping blanks and case-folded duplicates.
func (c *Client) GetOrCreateTagsByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	seen := make(map[string]bool)
	var tags []models.Tag
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		tag, err := c.GetOrCreateTagByName(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}
