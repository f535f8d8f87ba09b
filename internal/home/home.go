// Package home assembles the ranked home page feeds of deals.
package home

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/dealboard/internal/models"
)

type Section string

const (
	SectionAll         Section = ""
	SectionTrending    Section = "trending"
	SectionUsers       Section = "users"
	SectionRestaurants Section = "restaurants"
	SectionTags        Section = "tags"
)

type Sort string

const (
	SortDefault  Sort = ""
	SortTrending Sort = "trending"
	SortNew      Sort = "new"
	SortVotes    Sort = "votes"
)

// SummaryLimit caps every section of the home page summary.
const SummaryLimit = 8

var (
	ErrInvalidSection = errors.New("invalid section")
	ErrInvalidSort    = errors.New("invalid sort")
	ErrUnauthorized   = errors.New("section requires a signed-in viewer")
)

func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionAll, SectionTrending, SectionUsers, SectionRestaurants, SectionTags:
		return Section(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSection, s)
}

func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case SortDefault, SortTrending, SortNew, SortVotes:
		return Sort(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// Request selects what the home feed returns. An empty ViewerID is an anonymous viewer.
type Request struct {
	Section  Section
	Sort     Sort
	ViewerID string
}

// NewRequest parses raw query values into a Request.
func NewRequest(section, sort, viewerID string) (Request, error) {
	sec, err := ParseSection(section)
	if err != nil {
		return Request{}, err
	}
	srt, err := ParseSort(sort)
	if err != nil {
		return Request{}, err
	}
	return Request{Section: sec, Sort: srt, ViewerID: viewerID}, nil
}

// Feed is either a summary (one limited list per section) or the full list of one section.
type Feed struct {
	Summary map[Section][]models.DealView
	Deals   []models.DealView
}

func (f *Feed) IsSummary() bool {
	return f.Summary != nil
}

// Dependencies are the collaborators the aggregator reads from.
type Dependencies struct {
	Deals       DealStore
	Users       UserStore
	Restaurants RestaurantStore
	Tags        TagStore
	DealTags    DealTagStore
	Votes       VoteTally
	Follows     FollowGraph
}

// Aggregator assembles the ranked home page feeds. It never writes.
type Aggregator struct {
	deps Dependencies
	loc  *time.Location
}

func New(deps Dependencies, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{deps: deps, loc: loc}
}

// Feed builds the feed for req.
func (a *Aggregator) Feed(ctx context.Context, req Request) (*Feed, error) {
	if _, err := ParseSection(string(req.Section)); err != nil {
		return nil, err
	}
	if _, err := ParseSort(string(req.Sort)); err != nil {
		return nil, err
	}
	if req.Sort == SortDefault {
		req.Sort = SortTrending
	}

	anonymous := req.ViewerID == ""
	if anonymous && req.Section != SectionAll && req.Section != SectionTrending {
		return nil, ErrUnauthorized
	}

	if req.Section != SectionAll {
		views, err := a.section(ctx, req.Section, req.Sort, req.ViewerID, 0)
		if err != nil {
			return nil, err
		}
		return &Feed{Deals: views}, nil
	}

	sections := []Section{SectionTrending}
	if !anonymous {
		sections = append(sections, SectionUsers, SectionRestaurants, SectionTags)
	}
	summary := make(map[Section][]models.DealView, len(sections))
	for _, sec := range sections {
		views, err := a.section(ctx, sec, req.Sort, req.ViewerID, SummaryLimit)
		if err != nil {
			return nil, err
		}
		summary[sec] = views
	}
	return &Feed{Summary: summary}, nil
}

// section hydrates the section's ranking a window at a time until limit views are
// collected, so deals dropped for dangling references are replaced by the next ranked ones.
// A limit of 0 hydrates the whole ranking.
func (a *Aggregator) section(ctx context.Context, sec Section, sort Sort, viewerID string, limit int) ([]models.DealView, error) {
	r, err := a.sectionRanking(ctx, sec, sort, viewerID)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", sec, err)
	}
	views := make([]models.DealView, 0)
	for more := true; more && (limit <= 0 || len(views) < limit); {
		want := 0
		if limit > 0 {
			want = limit - len(views)
		}
		var deals []models.Deal
		deals, more, err = r.next(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec, err)
		}
		window, err := a.hydrate(ctx, deals, r.counts)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec, err)
		}
		views = append(views, window...)
	}
	return views, nil
}

// ranking yields a section's deals in their final order.
type ranking struct {
	// next returns up to n further deals (all of them when n is 0) and whether any remain.
	next func(ctx context.Context, n int) ([]models.Deal, bool, error)
	// counts are the vote counts read while ranking, nil if none were needed.
	counts map[string]int
}

func rankedDeals(deals []models.Deal, counts map[string]int) ranking {
	rest := deals
	return ranking{
		counts: counts,
		next: func(_ context.Context, n int) ([]models.Deal, bool, error) {
			window := limitDeals(rest, n)
			rest = rest[len(window):]
			return window, len(rest) > 0, nil
		},
	}
}

// rankedIDs reads the deals of already ordered ids one window at a time.
func (a *Aggregator) rankedIDs(ids []string) ranking {
	rest := ids
	return ranking{
		next: func(ctx context.Context, n int) ([]models.Deal, bool, error) {
			if n <= 0 || n > len(rest) {
				n = len(rest)
			}
			window := rest[:n]
			rest = rest[n:]
			deals, err := a.readDeals(ctx, window)
			return deals, len(rest) > 0, err
		},
	}
}

func (a *Aggregator) sectionRanking(ctx context.Context, sec Section, sort Sort, viewerID string) (ranking, error) {
	switch sec {
	case SectionTrending:
		return a.trending(ctx)
	case SectionUsers:
		userIDs, err := a.deps.Follows.FollowedIDs(ctx, viewerID, models.FollowUser)
		if err != nil {
			return ranking{}, fmt.Errorf("failed to read followed users: %w", err)
		}
		return a.followedDeals(ctx, userIDs, sort, a.deps.Deals.DealIDsByPosters)
	case SectionRestaurants:
		restaurantIDs, err := a.deps.Follows.FollowedIDs(ctx, viewerID, models.FollowRestaurant)
		if err != nil {
			return ranking{}, fmt.Errorf("failed to read followed restaurants: %w", err)
		}
		return a.followedDeals(ctx, restaurantIDs, sort, a.deps.Deals.DealIDsByRestaurants)
	case SectionTags:
		tagIDs, err := a.deps.Follows.FollowedIDs(ctx, viewerID, models.FollowTag)
		if err != nil {
			return ranking{}, fmt.Errorf("failed to read followed tags: %w", err)
		}
		dealIDs, err := a.dealIDsWithTags(ctx, tagIDs)
		if err != nil {
			return ranking{}, err
		}
		return a.rank(ctx, sort, dealIDs)
	}
	return ranking{}, fmt.Errorf("%w: %q", ErrInvalidSection, sec)
}

func (a *Aggregator) trending(ctx context.Context) (ranking, error) {
	deals, err := a.deps.Deals.ListDeals(ctx)
	if err != nil {
		return ranking{}, fmt.Errorf("failed to list deals: %w", err)
	}
	return a.hotSorted(ctx, deals)
}

func (a *Aggregator) hotSorted(ctx context.Context, deals []models.Deal) (ranking, error) {
	counts, err := a.deps.Votes.VoteCounts(ctx, dealIDs(deals))
	if err != nil {
		return ranking{}, fmt.Errorf("failed to read vote counts: %w", err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return rankedDeals(SortByHotScore(deals, counts, a.loc), counts), nil
}

type idQuery func(ctx context.Context, ids []string, limit int) ([]string, error)

// followedDeals lets the store order and limit when sorting by newest; every other
// sort must rank the whole candidate set before limiting.
func (a *Aggregator) followedDeals(ctx context.Context, followeeIDs []string, sort Sort, query idQuery) (ranking, error) {
	if len(followeeIDs) == 0 {
		return rankedDeals(nil, nil), nil
	}
	if sort == SortNew {
		return a.newestFirst(followeeIDs, query), nil
	}
	ids, err := query(ctx, followeeIDs, 0)
	if err != nil {
		return ranking{}, fmt.Errorf("failed to query deals: %w", err)
	}
	return a.rank(ctx, sort, ids)
}

// newestFirst pages through the store's newest-first ids, asking for a larger limit on
// each call and keeping only the ids past those already returned.
func (a *Aggregator) newestFirst(followeeIDs []string, query idQuery) ranking {
	seen := 0
	done := false
	return ranking{
		next: func(ctx context.Context, n int) ([]models.Deal, bool, error) {
			if done {
				return nil, false, nil
			}
			limit := 0
			if n > 0 {
				limit = seen + n
			}
			ids, err := query(ctx, followeeIDs, limit)
			if err != nil {
				return nil, false, fmt.Errorf("failed to query deals: %w", err)
			}
			done = limit == 0 || len(ids) < limit
			ids = ids[min(seen, len(ids)):]
			seen += len(ids)
			deals, err := a.readDeals(ctx, ids)
			return deals, !done, err
		},
	}
}

// dealIDsWithTags unions the deals of every tag, keeping first-seen order.
func (a *Aggregator) dealIDsWithTags(ctx context.Context, tagIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, tagID := range tagIDs {
		withTag, err := a.deps.DealTags.DealIDsWithTag(ctx, tagID)
		if err != nil {
			return nil, fmt.Errorf("failed to read deals with tag %s: %w", tagID, err)
		}
		for _, id := range withTag {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (a *Aggregator) rank(ctx context.Context, sort Sort, ids []string) (ranking, error) {
	if len(ids) == 0 {
		return rankedDeals(nil, nil), nil
	}
	switch sort {
	case SortVotes:
		sorted, err := a.deps.Votes.SortByVotes(ctx, ids, 0)
		if err != nil {
			return ranking{}, fmt.Errorf("failed to sort by votes: %w", err)
		}
		return a.rankedIDs(sorted), nil
	case SortNew:
		deals, err := a.readDeals(ctx, ids)
		if err != nil {
			return ranking{}, err
		}
		return rankedDeals(SortByNewest(deals), nil), nil
	default:
		deals, err := a.readDeals(ctx, ids)
		if err != nil {
			return ranking{}, err
		}
		return a.hotSorted(ctx, deals)
	}
}

func (a *Aggregator) readDeals(ctx context.Context, ids []string) ([]models.Deal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	deals, err := a.deps.Deals.GetDealsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read deals: %w", err)
	}
	return deals, nil
}

// Hydrate joins each deal with its poster, restaurant, tags and vote count, in order.
// A deal with a dangling reference is dropped; store failures abort.
func (a *Aggregator) Hydrate(ctx context.Context, deals []models.Deal) ([]models.DealView, error) {
	return a.hydrate(ctx, deals, nil)
}

// hydrate reads vote counts only when counts is nil.
func (a *Aggregator) hydrate(ctx context.Context, deals []models.Deal, counts map[string]int) ([]models.DealView, error) {
	views := make([]models.DealView, 0, len(deals))
	if len(deals) == 0 {
		return views, nil
	}
	var err error
	if counts == nil {
		if counts, err = a.deps.Votes.VoteCounts(ctx, dealIDs(deals)); err != nil {
			return nil, fmt.Errorf("failed to read vote counts: %w", err)
		}
	}

	users := make(map[string]*models.User)
	restaurants := make(map[string]*models.Restaurant)
	for _, d := range deals {
		poster, ok := users[d.PosterID]
		if !ok {
			poster, err = a.deps.Users.GetUserByID(ctx, d.PosterID)
			if err != nil {
				return nil, fmt.Errorf("failed to read poster of deal %s: %w", d.ID, err)
			}
			users[d.PosterID] = poster
		}
		if poster == nil {
			slog.Warn("Dropping deal with missing poster", "id", d.ID, "poster", d.PosterID)
			continue
		}

		restaurant, ok := restaurants[d.RestaurantID]
		if !ok {
			restaurant, err = a.deps.Restaurants.GetRestaurantByID(ctx, d.RestaurantID)
			if err != nil {
				return nil, fmt.Errorf("failed to read restaurant of deal %s: %w", d.ID, err)
			}
			restaurants[d.RestaurantID] = restaurant
		}
		if restaurant == nil {
			slog.Warn("Dropping deal with missing restaurant", "id", d.ID, "restaurant", d.RestaurantID)
			continue
		}

		tagIDs, err := a.deps.DealTags.TagIDsOfDeal(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read tags of deal %s: %w", d.ID, err)
		}
		tags, err := a.deps.Tags.GetTagsByIDs(ctx, tagIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to read tags of deal %s: %w", d.ID, err)
		}
		if len(tags) != len(tagIDs) {
			slog.Warn("Dropping deal with missing tags", "id", d.ID, "want", len(tagIDs), "got", len(tags))
			continue
		}

		views = append(views, models.NewDealView(d, *poster, *restaurant, tags, counts[d.ID]))
	}
	return views, nil
}

func dealIDs(deals []models.Deal) []string {
	ids := make([]string, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
	}
	return ids
}
