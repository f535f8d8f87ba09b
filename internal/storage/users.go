package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func setUserID(u *models.User, id string) { u.ID = id }

func (c *Client) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByID(ctx, c.client.Collection(usersCollection).Doc(id), setUserID)
}

func (c *Client) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	return getAllByIDs(ctx, c.client, usersCollection, ids, setUserID)
}

// GetOrCreateUserByEmail returns the user with email, creating it on first sight.
// The lookup and the create run in one transaction so concurrent first requests
// cannot create two users.
func (c *Client) GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("empty email")
	}
	coll := c.client.Collection(usersCollection)
	var user models.User
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(coll.Where("email", "==", email).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := docs[0].DataTo(&user); err != nil {
				return err
			}
			user.ID = docs[0].Ref.ID
			return nil
		}
		ref := coll.NewDoc()
		user = models.User{ID: ref.ID, Email: email, Username: defaultUsername(email)}
		return tx.Create(ref, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user %s: %w", email, err)
	}
	return &user, nil
}

func defaultUsername(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// UpdateUser applies the non-empty profile fields of u. Returns (nil, nil) when
// the user does not exist.
func (c *Client) UpdateUser(ctx context.Context, u models.User) (*models.User, error) {
	var updates []firestore.Update
	if u.Username != "" {
		updates = append(updates, firestore.Update{Path: "username", Value: u.Username})
	}
	if u.Bio != "" {
		updates = append(updates, firestore.Update{Path: "bio", Value: u.Bio})
	}
	if u.Picture != "" {
		updates = append(updates, firestore.Update{Path: "picture", Value: u.Picture})
	}
	if len(updates) == 0 {
		return c.GetUserByID(ctx, u.ID)
	}
	if _, err := c.client.Collection(usersCollection).Doc(u.ID).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update user %s: %w", u.ID, err)
	}
	return c.GetUserByID(ctx, u.ID)
}
