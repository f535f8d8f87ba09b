package home

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/pauljones0/dealboard/internal/models"
)

const (
	// oldestDealEpoch is the epoch second of the first deal ever posted.
	oldestDealEpoch = 1594652120
	// hotScoreDecay is how many seconds of age weigh as much as one order of magnitude of votes.
	hotScoreDecay = 45000
)

// HotScore blends the log-scaled, sign-preserving vote count with linear recency.
func HotScore(votes int, created time.Time) float64 {
	order := math.Log(math.Max(math.Abs(float64(votes)), 1))
	sign := 0.0
	if votes > 0 {
		sign = 1
	} else if votes < 0 {
		sign = -1
	}
	seconds := float64(created.Unix() - oldestDealEpoch)
	return sign*order + seconds/hotScoreDecay
}

// SortByHotScore returns deals ordered by non-increasing hot score. Creation
// timestamps are interpreted as wall-clock times in loc. Equal scores keep input order.
func SortByHotScore(deals []models.Deal, votes map[string]int, loc *time.Location) []models.Deal {
	type scored struct {
		deal  models.Deal
		score float64
	}
	ranked := make([]scored, 0, len(deals))
	for _, d := range deals {
		created, err := models.ParseZonedTimestamp(d.CreatedAt, loc)
		if err != nil {
			slog.Warn("Unparseable deal timestamp, scoring by votes only", "id", d.ID, "timestamp", d.CreatedAt, "error", err)
			created = time.Unix(oldestDealEpoch, 0)
		}
		ranked = append(ranked, scored{deal: d, score: HotScore(votes[d.ID], created)})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]models.Deal, len(ranked))
	for i, s := range ranked {
		out[i] = s.deal
	}
	return out
}

// SortByNewest returns deals ordered by non-increasing creation timestamp.
// Timestamps are compared as naive date-times; no zone is applied here, unlike
// SortByHotScore. Unparseable timestamps sort last.
func SortByNewest(deals []models.Deal) []models.Deal {
	type dated struct {
		deal    models.Deal
		created time.Time
		ok      bool
	}
	ranked := make([]dated, 0, len(deals))
	for _, d := range deals {
		created, err := models.ParseNaiveTimestamp(d.CreatedAt)
		ranked = append(ranked, dated{deal: d, created: created, ok: err == nil})
	}
	slices.SortStableFunc(ranked, func(a, b dated) int {
		if a.ok != b.ok {
			if a.ok {
				return -1
			}
			return 1
		}
		return b.created.Compare(a.created)
	})

	out := make([]models.Deal, len(ranked))
	for i, r := range ranked {
		out[i] = r.deal
	}
	return out
}

func limitDeals(deals []models.Deal, limit int) []models.Deal {
	if limit > 0 && len(deals) > limit {
		return deals[:limit]
	}
	return deals
}
