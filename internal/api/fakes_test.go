package api

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pauljones0/dealboard/internal/deals"
	"github.com/pauljones0/dealboard/internal/home"
	"github.com/pauljones0/dealboard/internal/models"
)

// fakeStore is an in-memory stand-in for every store the handlers read and write.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	restaurants map[string]models.Restaurant
	tags        map[string]models.Tag
	deals       map[string]models.Deal
	comments    map[string]models.Comment
	follows     map[string]models.Follow
	votes       map[string]int
	nextID      int

	feed         *home.Feed
	lastFeed     home.Request
	searchIDs    []string
	lastPageSize int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]models.User{},
		restaurants: map[string]models.Restaurant{},
		tags:        map[string]models.Tag{},
		deals:       map[string]models.Deal{},
		comments:    map[string]models.Comment{},
		follows:     map[string]models.Follow{},
		votes:       map[string]int{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

func followKey(follower string, kind models.FolloweeKind, followee string) string {
	return string(kind) + "|" + follower + "|" + followee
}

func (f *fakeStore) Feed(ctx context.Context, req home.Request) (*home.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFeed = req
	if req.ViewerID == "" && req.Section != home.SectionAll && req.Section != home.SectionTrending {
		return nil, home.ErrUnauthorized
	}
	if f.feed != nil {
		return f.feed, nil
	}
	return &home.Feed{Deals: []models.DealView{}}, nil
}

func (f *fakeStore) Hydrate(ctx context.Context, ds []models.Deal) ([]models.DealView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	views := make([]models.DealView, 0, len(ds))
	for _, d := range ds {
		views = append(views, models.NewDealView(d, f.users[d.PosterID], f.restaurants[d.RestaurantID], nil, 0))
	}
	return views, nil
}

func (f *fakeStore) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeStore) GetDealsByIDs(ctx context.Context, ids []string) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Deal
	for _, id := range ids {
		if d, ok := f.deals[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) dealsWhere(match func(models.Deal) bool) []models.Deal {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Deal
	for _, d := range f.deals {
		if match(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b models.Deal) int { return strings.Compare(b.CreatedAt, a.CreatedAt) })
	return out
}

func (f *fakeStore) DealsByPoster(ctx context.Context, posterID string) ([]models.Deal, error) {
	return f.dealsWhere(func(d models.Deal) bool { return d.PosterID == posterID }), nil
}

func (f *fakeStore) DealsByRestaurant(ctx context.Context, restaurantID string) ([]models.Deal, error) {
	return f.dealsWhere(func(d models.Deal) bool { return d.RestaurantID == restaurantID }), nil
}

func (f *fakeStore) GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	local, _, _ := strings.Cut(email, "@")
	u := models.User{ID: local, Email: email, Username: local}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStore) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, in models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[in.ID]
	if !ok {
		return nil, nil
	}
	if in.Username != "" {
		u.Username = in.Username
	}
	if in.Bio != "" {
		u.Bio = in.Bio
	}
	if in.Picture != "" {
		u.Picture = in.Picture
	}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeStore) CreateRestaurant(ctx context.Context, r models.Restaurant) (*models.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id("r")
	r.NameLower = strings.ToLower(r.Name)
	f.restaurants[r.ID] = r
	return &r, nil
}

func (f *fakeStore) GetRestaurantByID(ctx context.Context, id string) (*models.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.restaurants[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeStore) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]models.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Restaurant
	for _, id := range ids {
		if r, ok := f.restaurants[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRestaurant(ctx context.Context, in models.Restaurant) (*models.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.restaurants[in.ID]
	if !ok {
		return nil, nil
	}
	if in.Name != "" {
		r.Name = in.Name
	}
	if in.PhotoURL != "" {
		r.PhotoURL = in.PhotoURL
	}
	f.restaurants[r.ID] = r
	return &r, nil
}

func (f *fakeStore) DeleteRestaurant(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.restaurants, id)
	return nil
}

func (f *fakeStore) GetTagByID(ctx context.Context, id string) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tags[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) GetTagsByIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Tag
	for _, id := range ids {
		if t, ok := f.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrCreateTagsByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Tag
	for _, name := range names {
		id := "tag-" + strings.ToLower(name)
		t, ok := f.tags[id]
		if !ok {
			t = models.Tag{ID: id, Name: name, NameLower: strings.ToLower(name)}
			f.tags[id] = t
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) Vote(ctx context.Context, userID, dealID string, dir int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[userID+"_"+dealID] = dir
	total := 0
	for key, d := range f.votes {
		if strings.HasSuffix(key, "_"+dealID) {
			total += d
		}
	}
	return total, nil
}

func (f *fakeStore) Follow(ctx context.Context, follower string, kind models.FolloweeKind, followee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := followKey(follower, kind, followee)
	if _, ok := f.follows[key]; !ok {
		f.follows[key] = models.Follow{FollowerID: follower, Kind: kind, FolloweeID: followee, Since: time.Now()}
	}
	return nil
}

func (f *fakeStore) Unfollow(ctx context.Context, follower string, kind models.FolloweeKind, followee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, followKey(follower, kind, followee))
	return nil
}

func (f *fakeStore) IsFollowing(ctx context.Context, follower string, kind models.FolloweeKind, followee string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.follows[followKey(follower, kind, followee)]
	return ok, nil
}

func (f *fakeStore) FollowedIDs(ctx context.Context, follower string, kind models.FolloweeKind) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, e := range f.follows {
		if e.FollowerID == follower && e.Kind == kind {
			ids = append(ids, e.FolloweeID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeStore) FollowerIDs(ctx context.Context, kind models.FolloweeKind, followee string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, e := range f.follows {
		if e.FolloweeID == followee && e.Kind == kind {
			ids = append(ids, e.FollowerID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeStore) SetFollowedTags(ctx context.Context, userID string, tagIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.follows {
		if e.FollowerID == userID && e.Kind == models.FollowTag {
			delete(f.follows, key)
		}
	}
	for _, id := range tagIDs {
		f.follows[followKey(userID, models.FollowTag, id)] = models.Follow{FollowerID: userID, Kind: models.FollowTag, FolloweeID: id}
	}
	return nil
}

func (f *fakeStore) DeleteFollowersOf(ctx context.Context, kind models.FolloweeKind, followee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.follows {
		if e.Kind == kind && e.FolloweeID == followee {
			delete(f.follows, key)
		}
	}
	return nil
}

func (f *fakeStore) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id("c")
	c.Timestamp = time.Date(2021, 3, 15, 9, 0, f.nextID, 0, time.UTC)
	f.comments[c.ID] = c
	return &c, nil
}

func (f *fakeStore) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListComments pages by position; the token is the index of the next comment.
func (f *fakeStore) ListComments(ctx context.Context, dealID, pageToken string, pageSize int) ([]models.Comment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPageSize = pageSize
	var all []models.Comment
	for _, c := range f.comments {
		if c.DealID == dealID {
			all = append(all, c)
		}
	}
	slices.SortFunc(all, func(a, b models.Comment) int { return a.Timestamp.Compare(b.Timestamp) })
	start := 0
	if pageToken != "" {
		i := slices.IndexFunc(all, func(c models.Comment) bool { return c.ID == pageToken })
		if i < 0 {
			return nil, "", models.ErrInvalidPageToken
		}
		start = i
	}
	end := min(start+pageSize, len(all))
	next := ""
	if end < len(all) {
		next = all[end].ID
	}
	return all[start:end], next, nil
}

func (f *fakeStore) UpdateComment(ctx context.Context, id, content string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, nil
	}
	c.Content = content
	f.comments[id] = c
	return &c, nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.comments, id)
	return nil
}

func (f *fakeStore) SearchDeals(ctx context.Context, query string, tagIDs []string) ([]string, error) {
	return f.searchIDs, nil
}

// fakeDeals returns canned results from the deal service.
type fakeDeals struct {
	detail *deals.Detail
	err    error
}

func (d *fakeDeals) Post(ctx context.Context, posterID string, in deals.Input) (*deals.Detail, error) {
	return d.detail, d.err
}

func (d *fakeDeals) Get(ctx context.Context, viewerID, dealID string) (*deals.Detail, error) {
	return d.detail, d.err
}

func (d *fakeDeals) Update(ctx context.Context, viewerID, dealID string, p deals.Patch) (*deals.Detail, error) {
	return d.detail, d.err
}

func (d *fakeDeals) Delete(ctx context.Context, viewerID, dealID string) error {
	return d.err
}

type fakeHealth struct{ err error }

func (h fakeHealth) Health(ctx context.Context) error { return h.err }

var errBoom = errors.New("boom")
