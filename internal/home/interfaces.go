package home

import (
	"context"

	"github.com/pauljones0/dealboard/internal/models"
)

// DealStore abstracts deal reads. Lists of ids returned by the *By* queries are
// newest first; limit <= 0 means unlimited.
type DealStore interface {
	ListDeals(ctx context.Context) ([]models.Deal, error)
	GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error)
	DealIDsByPosters(ctx context.Context, posterIDs []string, limit int) ([]string, error)
	DealIDsByRestaurants(ctx context.Context, restaurantIDs []string, limit int) ([]string, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type RestaurantStore interface {
	GetRestaurantByID(ctx context.Context, id string) (*models.Restaurant, error)
}

// TagStore returns only the tags that exist; missing ids are omitted.
type TagStore interface {
	GetTagsByIDs(ctx context.Context, ids []string) ([]models.Tag, error)
}

type DealTagStore interface {
	TagIDsOfDeal(ctx context.Context, dealID string) ([]string, error)
	DealIDsWithTag(ctx context.Context, tagID string) ([]string, error)
}

// VoteTally exposes aggregate vote counts. SortByVotes returns ids ordered by
// count descending (deals without votes count as zero), cut to limit when limit > 0.
type VoteTally interface {
	VoteCounts(ctx context.Context, dealIDs []string) (map[string]int, error)
	SortByVotes(ctx context.Context, dealIDs []string, limit int) ([]string, error)
}

type FollowGraph interface {
	FollowedIDs(ctx context.Context, followerID string, kind models.FolloweeKind) ([]string, error)
}
