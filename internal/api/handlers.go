package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pauljones0/dealboard/internal/home"
	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/util"
	"github.com/pauljones0/dealboard/internal/validator"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v and validates it. On failure it writes the
// response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Request body must be valid JSON")
		return false
	}
	if s.deps.Validator == nil {
		return true
	}
	if err := s.deps.Validator.ValidateStruct(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", validator.Describe(err))
		return false
	}
	return true
}

// pathID returns the {id} URL parameter, rejecting values that cannot be document ids.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if s.deps.Validator != nil {
		if err := s.deps.Validator.ValidateVar(id, "docid"); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid id")
			return "", false
		}
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Health))
	status := http.StatusOK
	for name, hc := range s.deps.Health {
		if err := hc.Health(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, checks)
}

// handleHome serves GET /api/home?section=&sort=. The summary is an object keyed by
// section; a single section is a bare array.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := home.NewRequest(q.Get("section"), q.Get("sort"), ViewerID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	feed, err := s.deps.Feed.Feed(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.FeedRequests.WithLabelValues(sectionLabel(req.Section), sortLabel(req.Sort)).Inc()
	}
	if feed.IsSummary() {
		writeJSON(w, http.StatusOK, feed.Summary)
		return
	}
	writeJSON(w, http.StatusOK, feed.Deals)
}

func sectionLabel(s home.Section) string {
	if s == home.SectionAll {
		return "all"
	}
	return string(s)
}

func sortLabel(s home.Sort) string {
	if s == home.SortDefault {
		return "default"
	}
	return string(s)
}

type searchResponse struct {
	DealIDs []string `json:"dealIds"`
}

// handleSearch serves GET /api/search/deals?q=&tags=t1,t2.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := s.deps.Search.SearchDeals(r.Context(), q.Get("q"), util.ParseIDList(q.Get("tags")))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, searchResponse{DealIDs: ids})
}

type voteRequest struct {
	Dir *int `json:"dir" validate:"required,min=-1,max=1"`
}

type voteResponse struct {
	Votes     int `json:"votes"`
	Direction int `json:"direction"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	dealID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	deal, err := s.deps.DealStore.GetDealByID(r.Context(), dealID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if deal == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Deal not found")
		return
	}
	total, err := s.deps.Votes.Vote(r.Context(), ViewerID(r.Context()), dealID, *req.Dir)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.VotesCast.WithLabelValues(directionLabel(*req.Dir)).Inc()
	}
	writeJSON(w, http.StatusOK, voteResponse{Votes: total, Direction: *req.Dir})
}

func directionLabel(dir int) string {
	switch dir {
	case 1:
		return "up"
	case -1:
		return "down"
	}
	return "none"
}

// followee checks that the target of a follow edge exists.
func (s *Server) followee(ctx context.Context, kind models.FolloweeKind, id string) (bool, error) {
	switch kind {
	case models.FollowUser:
		u, err := s.deps.Users.GetUserByID(ctx, id)
		return u != nil, err
	case models.FollowRestaurant:
		rest, err := s.deps.Restaurants.GetRestaurantByID(ctx, id)
		return rest != nil, err
	case models.FollowTag:
		t, err := s.deps.Tags.GetTagByID(ctx, id)
		return t != nil, err
	}
	return false, nil
}

func (s *Server) followParams(w http.ResponseWriter, r *http.Request) (models.FolloweeKind, string, bool) {
	kind, err := models.ParseFolloweeKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
		return "", "", false
	}
	id, ok := s.pathID(w, r)
	return kind, id, ok
}

// handleFollow serves POST /api/follows/{users|restaurants|tags}/{id}. Following
// twice is not an error.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.followParams(w, r)
	if !ok {
		return
	}
	viewer := ViewerID(r.Context())
	if kind == models.FollowUser && id == viewer {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "You cannot follow yourself")
		return
	}
	exists, err := s.followee(r.Context(), kind, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "NotFound", string(kind)+" not found")
		return
	}
	if err := s.deps.Follows.Follow(r.Context(), viewer, kind, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.followParams(w, r)
	if !ok {
		return
	}
	if err := s.deps.Follows.Unfollow(r.Context(), ViewerID(r.Context()), kind, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
