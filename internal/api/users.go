package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/util"
)

type profileResponse struct {
	models.UserBrief
	Bio         string                   `json:"bio"`
	Deals       []models.DealView        `json:"deals"`
	Following   []models.UserBrief       `json:"following"`
	Followers   []models.UserBrief       `json:"followers"`
	Tags        []models.TagView         `json:"tags"`
	Restaurants []models.RestaurantBrief `json:"restaurants"`
	IsFollowing bool                     `json:"isFollowing"`
}

type userUpdateRequest struct {
	Username string `json:"username" validate:"omitempty,username,max=64"`
	Bio      string `json:"bio" validate:"max=500"`
	Picture  string `json:"picture" validate:"omitempty,http_url,max=2048"`
	// Tags are the names of the tags to follow; nil leaves them unchanged.
	Tags []string `json:"tags" validate:"omitempty,max=50,dive,required,max=50"`
}

func (s *Server) userBriefs(ctx context.Context, ids []string) ([]models.UserBrief, error) {
	users, err := s.deps.Users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	briefs := make([]models.UserBrief, len(users))
	for i, u := range users {
		briefs[i] = u.Brief()
	}
	return briefs, nil
}

// profile loads a user's page. The lookups are independent and run concurrently.
// Returns (nil, nil) when the user does not exist.
func (s *Server) profile(ctx context.Context, viewerID, userID string) (*profileResponse, error) {
	var (
		user *models.User
		resp profileResponse
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.deps.Users.GetUserByID(ctx, userID)
		return err
	})
	g.Go(func() error {
		posted, err := s.deps.DealStore.DealsByPoster(ctx, userID)
		if err != nil {
			return err
		}
		resp.Deals, err = s.deps.Feed.Hydrate(ctx, posted)
		return err
	})
	g.Go(func() error {
		ids, err := s.deps.Follows.FollowedIDs(ctx, userID, models.FollowUser)
		if err != nil {
			return err
		}
		resp.Following, err = s.userBriefs(ctx, ids)
		return err
	})
	g.Go(func() error {
		ids, err := s.deps.Follows.FollowerIDs(ctx, models.FollowUser, userID)
		if err != nil {
			return err
		}
		resp.Followers, err = s.userBriefs(ctx, ids)
		return err
	})
	g.Go(func() error {
		ids, err := s.deps.Follows.FollowedIDs(ctx, userID, models.FollowTag)
		if err != nil {
			return err
		}
		tags, err := s.deps.Tags.GetTagsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		resp.Tags = make([]models.TagView, len(tags))
		for i, t := range tags {
			resp.Tags[i] = t.View()
		}
		return nil
	})
	g.Go(func() error {
		ids, err := s.deps.Follows.FollowedIDs(ctx, userID, models.FollowRestaurant)
		if err != nil {
			return err
		}
		restaurants, err := s.deps.Restaurants.GetRestaurantsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		resp.Restaurants = make([]models.RestaurantBrief, len(restaurants))
		for i, rest := range restaurants {
			resp.Restaurants[i] = rest.Brief()
		}
		return nil
	})
	if viewerID != "" && viewerID != userID {
		g.Go(func() error {
			var err error
			resp.IsFollowing, err = s.deps.Follows.IsFollowing(ctx, viewerID, models.FollowUser, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	resp.UserBrief = user.Brief()
	resp.Bio = user.Bio
	return &resp, nil
}

// handleGetUser serves GET /api/users/{id}; "me" is the viewer.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	viewer := ViewerID(r.Context())
	id := resolveUserID(r, chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "Sign in to see your profile")
		return
	}
	if s.deps.Validator != nil && s.deps.Validator.ValidateVar(id, "docid") != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid id")
		return
	}
	p, err := s.profile(r.Context(), viewer, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateUser serves PUT /api/users/{id}. Users may only edit themselves.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	viewer := ViewerID(r.Context())
	if id := resolveUserID(r, chi.URLParam(r, "id")); id != viewer {
		writeError(w, http.StatusForbidden, "NotAuthorized", "You may only edit your own profile")
		return
	}
	var req userUpdateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	updated, err := s.deps.Users.UpdateUser(r.Context(), models.User{
		ID:       viewer,
		Username: req.Username,
		Bio:      util.StripTags(req.Bio),
		Picture:  req.Picture,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}

	if req.Tags != nil {
		var tagIDs []string
		if len(req.Tags) > 0 {
			tags, err := s.deps.Tags.GetOrCreateTagsByNames(r.Context(), req.Tags)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			for _, t := range tags {
				tagIDs = append(tagIDs, t.ID)
			}
		}
		if err := s.deps.Follows.SetFollowedTags(r.Context(), viewer, tagIDs); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	p, err := s.profile(r.Context(), viewer, viewer)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
