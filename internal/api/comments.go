package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/util"
)

const maxCommentsPageSize = 100

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type commentView struct {
	ID        string           `json:"id"`
	DealID    string           `json:"dealId"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	User      models.UserBrief `json:"user"`
}

type commentsPage struct {
	Comments      []commentView `json:"comments"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// commentViews joins comments with their authors. Comments of deleted users keep an
// author with only the id set.
func (s *Server) commentViews(ctx context.Context, comments []models.Comment) ([]commentView, error) {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.UserID
	}
	users, err := s.deps.Users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	views := make([]commentView, len(comments))
	for i, c := range comments {
		author, ok := byID[c.UserID]
		if !ok {
			author = models.User{ID: c.UserID}
		}
		views[i] = commentView{ID: c.ID, DealID: c.DealID, Content: c.Content, Timestamp: c.Timestamp, User: author.Brief()}
	}
	return views, nil
}

// handleListComments serves GET /api/deals/{id}/comments?pageToken=&pageSize=, oldest first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	dealID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	size := util.ClampPageSize(q.Get("pageSize"), s.opts.CommentsPageSize, maxCommentsPageSize)
	comments, next, err := s.deps.Comments.ListComments(r.Context(), dealID, q.Get("pageToken"), size)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	views, err := s.commentViews(r.Context(), comments)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commentsPage{Comments: views, NextPageToken: next})
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	dealID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	content := util.StripTags(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "content is required")
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
	created, err := s.deps.Comments.CreateComment(r.Context(), models.Comment{
		DealID:  dealID,
		UserID:  ViewerID(r.Context()),
		Content: content,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.CommentsPosted.Inc()
	}
	views, err := s.commentViews(r.Context(), []models.Comment{*created})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views[0])
}

// ownComment loads a comment and checks the viewer wrote it. On failure it writes the
// response and returns nil.
func (s *Server) ownComment(w http.ResponseWriter, r *http.Request) *models.Comment {
	id, ok := s.pathID(w, r)
	if !ok {
		return nil
	}
	c, err := s.deps.Comments.GetCommentByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return nil
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Comment not found")
		return nil
	}
	if c.UserID != ViewerID(r.Context()) {
		writeError(w, http.StatusForbidden, "NotAuthorized", "You may only change your own comments")
		return nil
	}
	return c
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	c := s.ownComment(w, r)
	if c == nil {
		return
	}
	var req commentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	content := util.StripTags(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "content is required")
		return
	}
	updated, err := s.deps.Comments.UpdateComment(r.Context(), c.ID, content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "NotFound", "Comment not found")
		return
	}
	views, err := s.commentViews(r.Context(), []models.Comment{*updated})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views[0])
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	c := s.ownComment(w, r)
	if c == nil {
		return
	}
	if err := s.deps.Comments.DeleteComment(r.Context(), c.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
