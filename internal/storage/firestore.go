// Package storage is the Firestore persistence layer of the deal board.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	dealsCollection       = "deals"
	usersCollection       = "users"
	restaurantsCollection = "restaurants"
	tagsCollection        = "tags"
	dealTagsCollection    = "dealTags"
	votesCollection       = "votes"
	dealVotesCollection   = "dealVotes"
	followsCollection     = "follows"
	commentsCollection    = "comments"
	searchCollection      = "searchIndex"

	// maxInValues is the Firestore limit on values in an "in" filter.
	maxInValues = 30
	// getAllBatch bounds the number of refs in one GetAll call.
	getAllBatch = 100
)

// Client is the Firestore-backed store for every entity of the app.
type Client struct {
	client *firestore.Client
	loc    *time.Location
	now    func() time.Time
}

// New connects to Firestore. Creation timestamps are written as wall-clock times in loc.
// FIRESTORE_EMULATOR_HOST is honoured by the underlying client.
func New(ctx context.Context, projectID string, loc *time.Location) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{client: client, loc: loc, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Health reads a single document to prove Firestore is reachable. A missing
// document is still a healthy answer.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Collection(dealsCollection).Doc("healthcheck").Get(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// getByID reads one document. A missing document yields (nil, nil).
func getByID[T any](ctx context.Context, ref *firestore.DocumentRef, setID func(*T, string)) (*T, error) {
	doc, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", ref.Path, err)
	}
	if !doc.Exists() {
		return nil, nil
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", ref.Path, err)
	}
	setID(&v, doc.Ref.ID)
	return &v, nil
}

// getAllByIDs reads documents in the order of ids, skipping missing ones and duplicates.
func getAllByIDs[T any](ctx context.Context, c *firestore.Client, collection string, ids []string, setID func(*T, string)) ([]T, error) {
	ids = dedupe(ids)
	out := make([]T, 0, len(ids))
	for _, batch := range chunk(ids, getAllBatch) {
		refs := make([]*firestore.DocumentRef, len(batch))
		for i, id := range batch {
			refs[i] = c.Collection(collection).Doc(id)
		}
		docs, err := c.GetAll(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("failed to get %d documents from %s: %w", len(refs), collection, err)
		}
		for _, doc := range docs {
			if !doc.Exists() {
				continue
			}
			var v T
			if err := doc.DataTo(&v); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", doc.Ref.Path, err)
			}
			setID(&v, doc.Ref.ID)
			out = append(out, v)
		}
	}
	return out, nil
}

// queryAll drains a query into values.
func queryAll[T any](ctx context.Context, q firestore.Query, setID func(*T, string)) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate query: %w", err)
		}
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", doc.Ref.Path, err)
		}
		setID(&v, doc.Ref.ID)
		out = append(out, v)
	}
	return out, nil
}

// deleteWhere deletes every document matched by q.
func (c *Client) deleteWhere(ctx context.Context, q firestore.Query) (int, error) {
	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bulkWriter.End()
			return 0, fmt.Errorf("failed to iterate documents to delete: %w", err)
		}
		job, err := bulkWriter.Delete(doc.Ref)
		if err != nil {
			bulkWriter.End()
			return 0, fmt.Errorf("failed to queue delete of %s: %w", doc.Ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	bulkWriter.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil && !isNotFound(err) {
			return 0, fmt.Errorf("bulk delete failed: %w", err)
		}
	}
	return len(jobs), nil
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
