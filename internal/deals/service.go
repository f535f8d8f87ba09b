// Package deals implements the lifecycle of a posted deal: posting, editing, deleting
// with everything that hangs off it, and the single-deal view.
package deals

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/notifier"
	"github.com/pauljones0/dealboard/internal/util"
	"github.com/pauljones0/dealboard/internal/validator"
)

const (
	announceTimeout = 30 * time.Second
	previewTimeout  = 8 * time.Second
)

// Input is a new deal as submitted by its poster.
type Input struct {
	Description  string   `json:"description" validate:"required,max=5000"`
	Image        string   `json:"image" validate:"omitempty,http_url,max=2048"`
	Start        string   `json:"start" validate:"required,day"`
	End          string   `json:"end" validate:"required,day"`
	Source       string   `json:"source" validate:"omitempty,http_url,max=2048"`
	RestaurantID string   `json:"restaurantId" validate:"required,docid"`
	Tags         []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

// Patch is a partial edit. Empty fields are kept; a nil Tags keeps the tags and an
// empty one clears them.
type Patch struct {
	Description  string   `json:"description" validate:"omitempty,max=5000"`
	Image        string   `json:"image" validate:"omitempty,http_url,max=2048"`
	Start        string   `json:"start" validate:"omitempty,day"`
	End          string   `json:"end" validate:"omitempty,day"`
	Source       string   `json:"source" validate:"omitempty,http_url,max=2048"`
	RestaurantID string   `json:"restaurantId" validate:"omitempty,docid"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,required,max=50"`
}

// Detail is the single-deal view: the hydrated deal plus the viewer's vote.
type Detail struct {
	models.DealView
	Direction int `json:"direction"`
}

type Service struct {
	store     Store
	hydrator  Hydrator
	announcer Announcer
	previewer Previewer
	validator *validator.Validator
	baseURL   string

	wg sync.WaitGroup
}

// New creates a Service. baseURL is the public address deal links in announcements
// point at; announcer may be nil.
func New(store Store, hydrator Hydrator, announcer Announcer, v *validator.Validator, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		hydrator:  hydrator,
		announcer: announcer,
		validator: v,
		baseURL:   baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*Service)

// WithPreviewer fills in the image of deals posted with a source but no image.
func WithPreviewer(p Previewer) Option {
	return func(s *Service) { s.previewer = p }
}

// Wait blocks until in-flight announcements finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) invalid(err error) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, validator.Describe(err))
}

// Post validates and stores a new deal by posterID, tags it, indexes it and
// announces it.
func (s *Service) Post(ctx context.Context, posterID string, in Input) (*Detail, error) {
	if err := s.validator.ValidateStruct(in); err != nil {
		return nil, s.invalid(err)
	}
	if in.Start > in.End {
		return nil, fmt.Errorf("%w: start %s is after end %s", models.ErrInvalidInput, in.Start, in.End)
	}
	restaurant, err := s.store.GetRestaurantByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, fmt.Errorf("%w: restaurant %s does not exist", models.ErrInvalidInput, in.RestaurantID)
	}

	deal := models.Deal{
		Description:  util.SanitizeDescription(in.Description),
		Image:        in.Image,
		Start:        in.Start,
		End:          in.End,
		PosterID:     posterID,
		RestaurantID: in.RestaurantID,
	}
	if deal.Description == "" {
		return nil, fmt.Errorf("%w: description is empty after removing markup", models.ErrInvalidInput)
	}
	if in.Source != "" {
		if deal.Source, err = util.NormalizeSourceURL(in.Source); err != nil {
			return nil, fmt.Errorf("%w: source: %v", models.ErrInvalidInput, err)
		}
	}
	if deal.Image == "" && deal.Source != "" {
		deal.Image = s.previewImage(ctx, deal.Source)
	}

	created, err := s.store.CreateDeal(ctx, deal)
	if err != nil {
		return nil, err
	}
	tags, err := s.tag(ctx, created.ID, in.Tags)
	if err == nil {
		err = s.store.IndexDeal(ctx, *created, tagIDs(tags))
	}
	if err != nil {
		s.discard(ctx, created.ID)
		return nil, err
	}
	slog.Info("Deal posted", "deal_id", created.ID, "poster_id", posterID, "restaurant_id", created.RestaurantID, "tags", len(tags))

	s.announceNew(ctx, *created, *restaurant, tags)
	return s.Get(ctx, posterID, created.ID)
}

// discard removes a deal whose tags or search entry could not be written, so a
// half-posted deal never shows up in feeds.
func (s *Service) discard(ctx context.Context, dealID string) {
	if _, err := s.store.DeleteTagsOfDeal(ctx, dealID); err != nil {
		slog.Error("Failed to remove tags of discarded deal", "deal_id", dealID, "error", err)
	}
	if err := s.store.DeleteDeal(ctx, dealID); err != nil {
		slog.Error("Failed to remove discarded deal", "deal_id", dealID, "error", err)
		return
	}
	slog.Warn("Discarded partially posted deal", "deal_id", dealID)
}

// previewImage asks the source page for an image. Failures leave the deal without one.
func (s *Service) previewImage(ctx context.Context, source string) string {
	if s.previewer == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()
	img, err := s.previewer.PreviewImage(ctx, source)
	if err != nil {
		slog.Warn("Failed to preview deal source", "source", source, "error", err)
		return ""
	}
	return img
}

func (s *Service) tag(ctx context.Context, dealID string, names []string) ([]models.Tag, error) {
	var tags []models.Tag
	if len(names) > 0 {
		var err error
		if tags, err = s.store.GetOrCreateTagsByNames(ctx, names); err != nil {
			return nil, err
		}
	}
	if err := s.store.SetDealTags(ctx, dealID, tagIDs(tags)); err != nil {
		return nil, err
	}
	return tags, nil
}

// Get returns the deal with the viewer's vote direction (0 for anonymous viewers).
func (s *Service) Get(ctx context.Context, viewerID, dealID string) (*Detail, error) {
	deal, err := s.store.GetDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, fmt.Errorf("deal %s: %w", dealID, models.ErrNotFound)
	}
	views, err := s.hydrator.Hydrate(ctx, []models.Deal{*deal})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		// poster or restaurant is gone
		return nil, fmt.Errorf("deal %s: %w", dealID, models.ErrNotFound)
	}
	dir, err := s.store.Direction(ctx, viewerID, dealID)
	if err != nil {
		return nil, err
	}
	return &Detail{DealView: views[0], Direction: dir}, nil
}

// owned loads a deal and checks that viewerID posted it.
func (s *Service) owned(ctx context.Context, viewerID, dealID string) (*models.Deal, error) {
	deal, err := s.store.GetDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, fmt.Errorf("deal %s: %w", dealID, models.ErrNotFound)
	}
	if deal.PosterID != viewerID {
		return nil, fmt.Errorf("deal %s: %w", dealID, models.ErrForbidden)
	}
	return deal, nil
}

// Update applies a partial edit. Only the poster may edit; the poster never changes.
func (s *Service) Update(ctx context.Context, viewerID, dealID string, p Patch) (*Detail, error) {
	if err := s.validator.ValidateStruct(p); err != nil {
		return nil, s.invalid(err)
	}
	deal, err := s.owned(ctx, viewerID, dealID)
	if err != nil {
		return nil, err
	}

	start, end := deal.Start, deal.End
	if p.Start != "" {
		start = p.Start
	}
	if p.End != "" {
		end = p.End
	}
	if start > end {
		return nil, fmt.Errorf("%w: start %s is after end %s", models.ErrInvalidInput, start, end)
	}

	change := models.Deal{ID: dealID, Image: p.Image, Start: p.Start, End: p.End, RestaurantID: p.RestaurantID}
	if p.Description != "" {
		if change.Description = util.SanitizeDescription(p.Description); change.Description == "" {
			return nil, fmt.Errorf("%w: description is empty after removing markup", models.ErrInvalidInput)
		}
	}
	if p.Source != "" {
		if change.Source, err = util.NormalizeSourceURL(p.Source); err != nil {
			return nil, fmt.Errorf("%w: source: %v", models.ErrInvalidInput, err)
		}
	}
	if p.RestaurantID != "" && p.RestaurantID != deal.RestaurantID {
		r, err := s.store.GetRestaurantByID(ctx, p.RestaurantID)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("%w: restaurant %s does not exist", models.ErrInvalidInput, p.RestaurantID)
		}
	}

	updated, err := s.store.UpdateDeal(ctx, change)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("deal %s: %w", dealID, models.ErrNotFound)
	}

	var ids []string
	if p.Tags != nil {
		tags, err := s.tag(ctx, dealID, p.Tags)
		if err != nil {
			return nil, err
		}
		ids = tagIDs(tags)
	} else if ids, err = s.store.TagIDsOfDeal(ctx, dealID); err != nil {
		return nil, err
	}
	if err := s.store.IndexDeal(ctx, *updated, ids); err != nil {
		return nil, err
	}

	s.announceUpdate(ctx, *updated, ids)
	return s.Get(ctx, viewerID, dealID)
}

// Delete removes a deal with its tags, votes, comments and search entry. Only the
// poster may delete.
func (s *Service) Delete(ctx context.Context, viewerID, dealID string) error {
	deal, err := s.owned(ctx, viewerID, dealID)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteTagsOfDeal(ctx, dealID); err != nil {
		return err
	}
	if err := s.store.DeleteVotesOfDeal(ctx, dealID); err != nil {
		return err
	}
	comments, err := s.store.DeleteCommentsOfDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveFromIndex(ctx, dealID); err != nil {
		return err
	}
	if err := s.store.DeleteDeal(ctx, dealID); err != nil {
		return err
	}
	slog.Info("Deal deleted", "deal_id", dealID, "comments_removed", comments)

	if messageID := deal.AnnouncementID; messageID != "" && s.announcing() {
		s.background(ctx, func(ctx context.Context) {
			if err := s.announcer.Delete(ctx, messageID); err != nil {
				slog.Warn("Failed to delete deal announcement", "deal_id", dealID, "message_id", messageID, "error", err)
			}
		})
	}
	return nil
}

func (s *Service) announcing() bool {
	return s.announcer != nil && s.announcer.Enabled()
}

// background runs fn detached from the request, so a client hanging up does not cancel it.
func (s *Service) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
	s.wg.Go(func() {
		defer cancel()
		fn(ctx)
	})
}

func (s *Service) dealURL(id string) string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/deals/" + id
}

func (s *Service) announcement(ctx context.Context, deal models.Deal, restaurant string, tags []models.Tag) notifier.Announcement {
	a := notifier.Announcement{Deal: deal, Restaurant: restaurant, DealURL: s.dealURL(deal.ID)}
	for _, t := range tags {
		a.Tags = append(a.Tags, t.Name)
	}
	if poster, err := s.store.GetUserByID(ctx, deal.PosterID); err == nil && poster != nil {
		a.Poster = poster.Username
	}
	return a
}

func (s *Service) announceNew(ctx context.Context, deal models.Deal, restaurant models.Restaurant, tags []models.Tag) {
	if !s.announcing() {
		return
	}
	s.background(ctx, func(ctx context.Context) {
		messageID, err := s.announcer.Send(ctx, s.announcement(ctx, deal, restaurant.Name, tags))
		if err != nil {
			slog.Warn("Failed to announce deal", "deal_id", deal.ID, "error", err)
			return
		}
		if messageID == "" {
			return
		}
		if _, err := s.store.UpdateDeal(ctx, models.Deal{ID: deal.ID, AnnouncementID: messageID}); err != nil {
			slog.Warn("Failed to record announcement", "deal_id", deal.ID, "message_id", messageID, "error", err)
		}
	})
}

func (s *Service) announceUpdate(ctx context.Context, deal models.Deal, ids []string) {
	if deal.AnnouncementID == "" || !s.announcing() {
		return
	}
	s.background(ctx, func(ctx context.Context) {
		var name string
		if r, err := s.store.GetRestaurantByID(ctx, deal.RestaurantID); err == nil && r != nil {
			name = r.Name
		}
		tags, err := s.store.GetTagsByIDs(ctx, ids)
		if err != nil {
			slog.Warn("Failed to load tags for announcement", "deal_id", deal.ID, "error", err)
		}
		if err := s.announcer.Update(ctx, deal.AnnouncementID, s.announcement(ctx, deal, name, tags)); err != nil {
			slog.Warn("Failed to update deal announcement", "deal_id", deal.ID, "error", err)
		}
	})
}

func tagIDs(tags []models.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
