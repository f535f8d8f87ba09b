package storage

import (
	"context"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/dealboard/internal/models"
)

func setCommentID(cm *models.Comment, id string) { cm.ID = id }

func (c *Client) CreateComment(ctx context.Context, cm models.Comment) (*models.Comment, error) {
	ref := c.client.Collection(commentsCollection).NewDoc()
	cm.ID = ref.ID
	cm.Timestamp = c.now().UTC()
	if _, err := ref.Create(ctx, cm); err != nil {
		return nil, fmt.Errorf("failed to create comment on deal %s: %w", cm.DealID, err)
	}
	return &cm, nil
}

func (c *Client) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	return getByID(ctx, c.client.Collection(commentsCollection).Doc(id), setCommentID)
}

// ListComments returns one page of a deal's comments, oldest first, and the token of
// the next page ("" when this is the last one).
func (c *Client) ListComments(ctx context.Context, dealID, pageToken string, pageSize int) ([]models.Comment, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	q := c.client.Collection(commentsCollection).
		Where("deal", "==", dealID).
		OrderBy("timestamp", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		lastID, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		last, err := c.client.Collection(commentsCollection).Doc(lastID).Get(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, "", models.ErrInvalidPageToken
			}
			return nil, "", fmt.Errorf("failed to resolve page token: %w", err)
		}
		q = q.StartAfter(last)
	}

	comments, err := queryAll(ctx, q.Limit(pageSize+1), setCommentID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list comments of deal %s: %w", dealID, err)
	}
	next := ""
	if len(comments) > pageSize {
		comments = comments[:pageSize]
		next = encodePageToken(comments[pageSize-1].ID)
	}
	return comments, next, nil
}

func encodePageToken(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodePageToken(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) == 0 {
		return "", models.ErrInvalidPageToken
	}
	return string(b), nil
}

// UpdateComment replaces the content. Returns (nil, nil) when the comment does not exist.
func (c *Client) UpdateComment(ctx context.Context, id, content string) (*models.Comment, error) {
	ref := c.client.Collection(commentsCollection).Doc(id)
	if _, err := ref.Update(ctx, []firestore.Update{{Path: "content", Value: content}}); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update comment %s: %w", id, err)
	}
	return c.GetCommentByID(ctx, id)
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	if _, err := c.client.Collection(commentsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteCommentsOfDeal(ctx context.Context, dealID string) (int, error) {
	n, err := c.deleteWhere(ctx, c.client.Collection(commentsCollection).Where("deal", "==", dealID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete comments of deal %s: %w", dealID, err)
	}
	return n, nil
}
