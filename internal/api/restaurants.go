package api

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/util"
)

type restaurantRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,http_url,max=2048"`
}

type restaurantPatch struct {
	Name     string `json:"name" validate:"max=200"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,http_url,max=2048"`
}

type restaurantResponse struct {
	models.RestaurantBrief
	PosterID    string            `json:"posterId"`
	Deals       []models.DealView `json:"deals"`
	Followers   int               `json:"followers"`
	IsFollowing bool              `json:"isFollowing"`
}

func (s *Server) handleCreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req restaurantRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	name := util.StripTags(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "name is required")
		return
	}
	created, err := s.deps.Restaurants.CreateRestaurant(r.Context(), models.Restaurant{
		Name:     name,
		PhotoURL: req.PhotoURL,
		PosterID: ViewerID(r.Context()),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/restaurants/"+created.ID)
	writeJSON(w, http.StatusCreated, restaurantResponse{
		RestaurantBrief: created.Brief(),
		PosterID:        created.PosterID,
		Deals:           []models.DealView{},
	})
}

// handleGetRestaurant serves GET /api/restaurants/{id} with the restaurant's deals, newest first.
func (s *Server) handleGetRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	viewer := ViewerID(r.Context())

	var (
		rest *models.Restaurant
		resp restaurantResponse
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rest, err = s.deps.Restaurants.GetRestaurantByID(ctx, id)
		return err
	})
	g.Go(func() error {
		ds, err := s.deps.DealStore.DealsByRestaurant(ctx, id)
		if err != nil {
			return err
		}
		resp.Deals, err = s.deps.Feed.Hydrate(ctx, ds)
		return err
	})
	g.Go(func() error {
		ids, err := s.deps.Follows.FollowerIDs(ctx, models.FollowRestaurant, id)
		resp.Followers = len(ids)
		return err
	})
	if viewer != "" {
		g.Go(func() error {
			var err error
			resp.IsFollowing, err = s.deps.Follows.IsFollowing(ctx, viewer, models.FollowRestaurant, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if rest == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Restaurant not found")
		return
	}
	resp.RestaurantBrief = rest.Brief()
	resp.PosterID = rest.PosterID
	writeJSON(w, http.StatusOK, resp)
}

// ownRestaurant loads a restaurant and checks the viewer created it. On failure it
// writes the response and returns nil.
func (s *Server) ownRestaurant(w http.ResponseWriter, r *http.Request) *models.Restaurant {
	id, ok := s.pathID(w, r)
	if !ok {
		return nil
	}
	rest, err := s.deps.Restaurants.GetRestaurantByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return nil
	}
	if rest == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Restaurant not found")
		return nil
	}
	if rest.PosterID != ViewerID(r.Context()) {
		writeError(w, http.StatusForbidden, "NotAuthorized", "You may only change restaurants you added")
		return nil
	}
	return rest
}

func (s *Server) handleUpdateRestaurant(w http.ResponseWriter, r *http.Request) {
	rest := s.ownRestaurant(w, r)
	if rest == nil {
		return
	}
	var req restaurantPatch
	if !s.decodeBody(w, r, &req) {
		return
	}
	updated, err := s.deps.Restaurants.UpdateRestaurant(r.Context(), models.Restaurant{
		ID:       rest.ID,
		Name:     util.StripTags(req.Name),
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Restaurant not found")
		return
	}
	writeJSON(w, http.StatusOK, restaurantResponse{
		RestaurantBrief: updated.Brief(),
		PosterID:        updated.PosterID,
	})
}

// handleDeleteRestaurant removes a restaurant and the follow edges to it. A restaurant
// that still has deals cannot be deleted.
func (s *Server) handleDeleteRestaurant(w http.ResponseWriter, r *http.Request) {
	rest := s.ownRestaurant(w, r)
	if rest == nil {
		return
	}
	ds, err := s.deps.DealStore.DealsByRestaurant(r.Context(), rest.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if len(ds) > 0 {
		writeError(w, http.StatusConflict, "RestaurantHasDeals", "Delete the restaurant's deals first")
		return
	}
	if err := s.deps.Follows.DeleteFollowersOf(r.Context(), models.FollowRestaurant, rest.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := s.deps.Restaurants.DeleteRestaurant(r.Context(), rest.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
