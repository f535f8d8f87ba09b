// Package models holds the domain types shared by the store, the feed and the API.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when attempting to create a document that already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden is returned when the viewer may not change a document they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned when a request is well-formed but semantically wrong.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPageToken is returned when a continuation token does not decode to a known position.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// TimestampLayout is the fixed-width layout of Deal.CreatedAt. Values are naive local
// date-times: the zone they were written in is configuration, not data. Fixed width keeps
// lexical order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000"

// DateLayout is the layout of a deal's start and end dates.
const DateLayout = "2006-01-02"

// Deal is a posted restaurant promotion.
type Deal struct {
	ID           string `firestore:"-"`
	Description  string `firestore:"description"`
	Image        string `firestore:"image,omitempty"`
	Start        string `firestore:"start"`
	End          string `firestore:"end"`
	Source       string `firestore:"source,omitempty"`
	PosterID     string `firestore:"posterId"`
	RestaurantID string `firestore:"restaurantId"`
	CreatedAt    string `firestore:"creationTimestamp"`
	// AnnouncementID is the Discord message that announced the deal, if any.
	AnnouncementID string `firestore:"announcementId,omitempty"`
}

// FormatTimestamp renders t as a naive date-time in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// ParseNaiveTimestamp parses a creation timestamp without attaching any zone.
// Fractional seconds of any precision are accepted.
func ParseNaiveTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05", s)
}

// ParseZonedTimestamp parses a creation timestamp as a wall-clock time in loc.
func ParseZonedTimestamp(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
}
