package deals

import (
	"context"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/notifier"
)

// Store is the persistence the deal lifecycle needs.
type Store interface {
	CreateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error)
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	UpdateDeal(ctx context.Context, deal models.Deal) (*models.Deal, error)
	DeleteDeal(ctx context.Context, id string) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetRestaurantByID(ctx context.Context, id string) (*models.Restaurant, error)

	GetOrCreateTagsByNames(ctx context.Context, names []string) ([]models.Tag, error)
	GetTagsByIDs(ctx context.Context, ids []string) ([]models.Tag, error)
	SetDealTags(ctx context.Context, dealID string, tagIDs []string) error
	TagIDsOfDeal(ctx context.Context, dealID string) ([]string, error)
	DeleteTagsOfDeal(ctx context.Context, dealID string) (int, error)

	Direction(ctx context.Context, userID, dealID string) (int, error)
	DeleteVotesOfDeal(ctx context.Context, dealID string) error
	DeleteCommentsOfDeal(ctx context.Context, dealID string) (int, error)

	IndexDeal(ctx context.Context, deal models.Deal, tagIDs []string) error
	RemoveFromIndex(ctx context.Context, dealID string) error
}

// Hydrator joins deals with their references.
type Hydrator interface {
	Hydrate(ctx context.Context, deals []models.Deal) ([]models.DealView, error)
}

// Announcer publishes deals to a chat channel.
type Announcer interface {
	Enabled() bool
	Send(ctx context.Context, a notifier.Announcement) (string, error)
	Update(ctx context.Context, messageID string, a notifier.Announcement) error
	Delete(ctx context.Context, messageID string) error
}

// Previewer finds an image for a deal from its source page.
type Previewer interface {
	PreviewImage(ctx context.Context, sourceURL string) (string, error)
}
