// Package api is the JSON HTTP surface of the deal board.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/pauljones0/dealboard/internal/deals"
	"github.com/pauljones0/dealboard/internal/home"
	"github.com/pauljones0/dealboard/internal/metrics"
	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/validator"
)

type FeedService interface {
	Feed(ctx context.Context, req home.Request) (*home.Feed, error)
	Hydrate(ctx context.Context, deals []models.Deal) ([]models.DealView, error)
}

type DealService interface {
	Post(ctx context.Context, posterID string, in deals.Input) (*deals.Detail, error)
	Get(ctx context.Context, viewerID, dealID string) (*deals.Detail, error)
	Update(ctx context.Context, viewerID, dealID string, p deals.Patch) (*deals.Detail, error)
	Delete(ctx context.Context, viewerID, dealID string) error
}

type DealStore interface {
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error)
	DealsByPoster(ctx context.Context, posterID string) ([]models.Deal, error)
	DealsByRestaurant(ctx context.Context, restaurantID string) ([]models.Deal, error)
}

type UserStore interface {
	GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateUser(ctx context.Context, u models.User) (*models.User, error)
}

type RestaurantStore interface {
	CreateRestaurant(ctx context.Context, r models.Restaurant) (*models.Restaurant, error)
	GetRestaurantByID(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantsByIDs(ctx context.Context, ids []string) ([]models.Restaurant, error)
	UpdateRestaurant(ctx context.Context, r models.Restaurant) (*models.Restaurant, error)
	DeleteRestaurant(ctx context.Context, id string) error
}

type TagStore interface {
	GetTagByID(ctx context.Context, id string) (*models.Tag, error)
	GetTagsByIDs(ctx context.Context, ids []string) ([]models.Tag, error)
	GetOrCreateTagsByNames(ctx context.Context, names []string) ([]models.Tag, error)
}

type VoteStore interface {
	Vote(ctx context.Context, userID, dealID string, dir int) (int, error)
}

// FollowGraph is implemented by both the Firestore store and the Neo4j graph.
type FollowGraph interface {
	Follow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error
	Unfollow(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) error
	IsFollowing(ctx context.Context, followerID string, kind models.FolloweeKind, followeeID string) (bool, error)
	FollowedIDs(ctx context.Context, followerID string, kind models.FolloweeKind) ([]string, error)
	FollowerIDs(ctx context.Context, kind models.FolloweeKind, followeeID string) ([]string, error)
	SetFollowedTags(ctx context.Context, userID string, tagIDs []string) error
	DeleteFollowersOf(ctx context.Context, kind models.FolloweeKind, followeeID string) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, dealID, pageToken string, pageSize int) ([]models.Comment, string, error)
	UpdateComment(ctx context.Context, id, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type SearchIndex interface {
	SearchDeals(ctx context.Context, query string, tagIDs []string) ([]string, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies wires the handlers to their collaborators.
type Dependencies struct {
	Feed        FeedService
	Deals       DealService
	DealStore   DealStore
	Users       UserStore
	Restaurants RestaurantStore
	Tags        TagStore
	Votes       VoteStore
	Follows     FollowGraph
	Comments    CommentStore
	Search      SearchIndex
	Metrics     *metrics.Collector
	Validator   *validator.Validator
	// Health checks run by /readyz, keyed by name.
	Health map[string]HealthChecker
}

// Options tune the router.
type Options struct {
	AuthEmailHeader  string
	WriteRateLimit   rate.Limit
	WriteRateBurst   int
	CommentsPageSize int
	RequestTimeout   time.Duration
}

type Server struct {
	deps Dependencies
	opts Options
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(deps Dependencies, opts Options) http.Handler {
	if opts.CommentsPageSize <= 0 {
		opts.CommentsPageSize = 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.WriteRateLimit <= 0 {
		opts.WriteRateLimit = rate.Inf
	}
	if opts.WriteRateBurst <= 0 {
		opts.WriteRateBurst = 1
	}
	s := &Server{deps: deps, opts: opts}
	limiter := newWriteLimiter(opts.WriteRateLimit, opts.WriteRateBurst)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)

	router.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
		r.Use(viewerMiddleware(opts.AuthEmailHeader, deps.Users))
		r.Use(limiter.Middleware)

		r.Get("/home", s.handleHome)
		r.Get("/search/deals", s.handleSearch)

		r.Route("/deals", func(r chi.Router) {
			r.With(requireViewer).Post("/", s.handlePostDeal)
			r.Get("/{id}", s.handleGetDeal)
			r.With(requireViewer).Put("/{id}", s.handleUpdateDeal)
			r.With(requireViewer).Delete("/{id}", s.handleDeleteDeal)
			r.With(requireViewer).Post("/{id}/votes", s.handleVote)
			r.Get("/{id}/comments", s.handleListComments)
			r.With(requireViewer).Post("/{id}/comments", s.handlePostComment)
		})

		r.Route("/comments/{id}", func(r chi.Router) {
			r.Use(requireViewer)
			r.Put("/", s.handleUpdateComment)
			r.Delete("/", s.handleDeleteComment)
		})

		r.Route("/follows/{kind}/{id}", func(r chi.Router) {
			r.Use(requireViewer)
			r.Post("/", s.handleFollow)
			r.Delete("/", s.handleUnfollow)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.With(requireViewer).Put("/", s.handleUpdateUser)
		})

		r.Route("/restaurants", func(r chi.Router) {
			r.With(requireViewer).Post("/", s.handleCreateRestaurant)
			r.Get("/{id}", s.handleGetRestaurant)
			r.With(requireViewer).Put("/{id}", s.handleUpdateRestaurant)
			r.With(requireViewer).Delete("/{id}", s.handleDeleteRestaurant)
		})
	})

	return router
}
