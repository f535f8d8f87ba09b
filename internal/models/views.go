package models

// UserBrief is the embedded form of a user inside other views.
type UserBrief struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Picture  string `json:"picture"`
}

// RestaurantBrief is the embedded form of a restaurant inside other views.
type RestaurantBrief struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

type TagView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DealView is a deal joined with its poster, restaurant, tags and vote count.
// It is built per request and never persisted.
type DealView struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Source      string          `json:"source"`
	Poster      UserBrief       `json:"poster"`
	Restaurant  RestaurantBrief `json:"restaurant"`
	Tags        []TagView       `json:"tags"`
	Votes       int             `json:"votes"`
}

func (u User) Brief() UserBrief {
	return UserBrief{ID: u.ID, Username: u.Username, Picture: u.Picture}
}

func (r Restaurant) Brief() RestaurantBrief {
	return RestaurantBrief{ID: r.ID, Name: r.Name, PhotoURL: r.PhotoURL}
}

func (t Tag) View() TagView {
	return TagView{ID: t.ID, Name: t.Name}
}

// NewDealView joins a deal with its resolved references.
func NewDealView(d Deal, poster User, restaurant Restaurant, tags []Tag, votes int) DealView {
	tagViews := make([]TagView, 0, len(tags))
	for _, t := range tags {
		tagViews = append(tagViews, t.View())
	}
	return DealView{
		ID:          d.ID,
		Description: d.Description,
		Image:       d.Image,
		Start:       d.Start,
		End:         d.End,
		Source:      d.Source,
		Poster:      poster.Brief(),
		Restaurant:  restaurant.Brief(),
		Tags:        tagViews,
		Votes:       votes,
	}
}
