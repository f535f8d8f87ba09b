package models

import (
	"fmt"
	"time"
)

type User struct {
	ID       string `firestore:"-"`
	Email    string `firestore:"email"`
	Username string `firestore:"username"`
	Bio      string `firestore:"bio,omitempty"`
	Picture  string `firestore:"picture,omitempty"`
}

type Restaurant struct {
	ID        string `firestore:"-"`
	Name      string `firestore:"name"`
	NameLower string `firestore:"nameLowercase"`
	PhotoURL  string `firestore:"photoUrl,omitempty"`
	PosterID  string `firestore:"posterId"`
}

type Tag struct {
	ID        string `firestore:"-"`
	Name      string `firestore:"name"`
	NameLower string `firestore:"nameLowercase"`
}

type Comment struct {
	ID        string    `firestore:"-"`
	DealID    string    `firestore:"deal"`
	UserID    string    `firestore:"user"`
	Content   string    `firestore:"content"`
	Timestamp time.Time `firestore:"timestamp"`
}

// Vote is one user's current direction on one deal.
type Vote struct {
	UserID string `firestore:"user"`
	DealID string `firestore:"deal"`
	Dir    int    `firestore:"dir"`
}

// DealVote is the aggregate of all vote directions on a deal.
type DealVote struct {
	DealID string `firestore:"deal"`
	Votes  int    `firestore:"votes"`
}

// FolloweeKind names what a follow edge points at.
type FolloweeKind string

const (
	FollowUser       FolloweeKind = "user"
	FollowRestaurant FolloweeKind = "restaurant"
	FollowTag        FolloweeKind = "tag"
)

// ParseFolloweeKind accepts both the singular kind and the plural path segment.
func ParseFolloweeKind(s string) (FolloweeKind, error) {
	switch s {
	case "user", "users":
		return FollowUser, nil
	case "restaurant", "restaurants":
		return FollowRestaurant, nil
	case "tag", "tags":
		return FollowTag, nil
	}
	return "", fmt.Errorf("unknown followee kind %q", s)
}

type Follow struct {
	FollowerID string       `firestore:"follower"`
	FolloweeID string       `firestore:"followee"`
	Kind       FolloweeKind `firestore:"kind"`
	Since      time.Time    `firestore:"since"`
}
