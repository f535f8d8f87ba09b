// Package graph stores follow edges in Neo4j as an alternative to the Firestore follows collection.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pauljones0/dealboard/internal/models"
)

// Graph keeps (:User)-[:FOLLOWS]->(:User|:Restaurant|:Tag) edges. Nodes carry only the
// Firestore document id; entity data stays in Firestore.
type Graph struct {
	driver neo4j.DriverWithContext
}

func New(ctx context.Context, uri, username, password string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Graph{driver: driver}, nil
}

func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Graph) Health(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// label maps a followee kind to its node label. Labels cannot be query parameters, so
// only this fixed set is ever spliced into Cypher.
func label(kind models.FolloweeKind) (string, error) {
	switch kind {
	case models.FollowUser:
		return "User", nil
	case models.FollowRestaurant:
		return "Restaurant", nil
	case models.FollowTag:
		return "Tag", nil
	}
	return "", fmt.Errorf("unknown followee kind %q", kind)
}

func followCypher(lbl string) string {
	return `
		MERGE (f:User {id: $followerID})
		MERGE (t:` + lbl + ` {id: $followeeID})
		MERGE (f)-[r:FOLLOWS]->(t)
		ON CREATE SET r.since = datetime($now)
	`
}

func unfollowCypher(lbl string) string {
	return `
		MATCH (:User {id: $followerID})-[r:FOLLOWS]->(:` + lbl + ` {id: $followeeID})
		DELETE r
	`
}

func followedCypher(lbl string) string {
	return `
		MATCH (:User {id: $followerID})-[r:FOLLOWS]->(t:` + lbl + `)
		RETURN t.id AS id
		ORDER BY r.since ASC
	`
}

func followersCypher(lbl string) string {
	return `
		MATCH (f:User)-[r:FOLLOWS]->(:` + lbl + ` {id: $followeeID})
		RETURN f.id AS id
		ORDER BY r.since ASC
	`
}

func (g *Graph) write(ctx context.Context, cypher string, params map[string]any) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

func (g *Graph) readIDs(ctx context.Context, cypher string, params map[string]any) ([]string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			v, ok := rec.Get("id")
			if !ok {
				continue
			}
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

func (g *Graph) Follow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error {
	lbl, err := label(kind)
	if err != nil {
		return err
	}
	err = g.write(ctx, followCypher(lbl), map[string]any{
		"followerID": followerID,
		"followeeID": followeeID,
		"now":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s %s: %w", kind, followeeID, err)
	}
	return nil
}

func (g *Graph) Unfollow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error {
	lbl, err := label(kind)
	if err != nil {
		return err
	}
	err = g.write(ctx, unfollowCypher(lbl), map[string]any{"followerID": followerID, "followeeID": followeeID})
	if err != nil {
		return fmt.Errorf("failed to unfollow %s %s: %w", kind, followeeID, err)
	}
	return nil
}

func (g *Graph) IsFollowing(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) (bool, error) {
	ids, err := g.FollowedIDs(ctx, followerID, kind)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == followeeID {
			return true, nil
		}
	}
	return false, nil
}

// FollowedIDs returns what followerID follows of kind, oldest edge first.
func (g *Graph) FollowedIDs(ctx context.Context, followerID string, kind models.FolloweeKind) ([]string, error) {
	lbl, err := label(kind)
	if err != nil {
		return nil, err
	}
	ids, err := g.readIDs(ctx, followedCypher(lbl), map[string]any{"followerID": followerID})
	if err != nil {
		return nil, fmt.Errorf("failed to list followed %ss of %s: %w", kind, followerID, err)
	}
	return ids, nil
}

func (g *Graph) FollowerIDs(ctx context.Context, kind models.FolloweeKind, followeeID string) ([]string, error) {
	lbl, err := label(kind)
	if err != nil {
		return nil, err
	}
	ids, err := g.readIDs(ctx, followersCypher(lbl), map[string]any{"followeeID": followeeID})
	if err != nil {
		return nil, fmt.Errorf("failed to list followers of %s %s: %w", kind, followeeID, err)
	}
	return ids, nil
}

// SetFollowedTags makes userID follow exactly tagIDs in one transaction.
func (g *Graph) SetFollowedTags(ctx context.Context, userID string, tagIDs []string) error {
	const cypher = `
		MERGE (u:User {id: $userID})
		WITH u
		OPTIONAL MATCH (u)-[old:FOLLOWS]->(t:Tag)
		WHERE NOT t.id IN $tagIDs
		DELETE old
		WITH DISTINCT u
		UNWIND $tagIDs AS tagID
		MERGE (t:Tag {id: tagID})
		MERGE (u)-[r:FOLLOWS]->(t)
		ON CREATE SET r.since = datetime($now)
	`
	if tagIDs == nil {
		tagIDs = []string{}
	}
	err := g.write(ctx, cypher, map[string]any{
		"userID": userID,
		"tagIDs": tagIDs,
		"now":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to set followed tags of %s: %w", userID, err)
	}
	return nil
}

// DeleteFollowersOf removes the followee node and every edge into it.
func (g *Graph) DeleteFollowersOf(ctx context.Context, kind models.FolloweeKind, followeeID string) error {
	lbl, err := label(kind)
	if err != nil {
		return err
	}
	cypher := `MATCH (t:` + lbl + ` {id: $followeeID}) DETACH DELETE t`
	if err := g.write(ctx, cypher, map[string]any{"followeeID": followeeID}); err != nil {
		return fmt.Errorf("failed to delete followers of %s %s: %w", kind, followeeID, err)
	}
	return nil
}
