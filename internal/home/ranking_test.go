package home

import (
	"math"
	"testing"
	"time"

	"github.com/pauljones0/dealboard/internal/models"
)

var sgt = time.FixedZone("SGT", 8*60*60)

// createdAfterOldest formats the naive SGT timestamp of a deal posted secs after the oldest deal.
func createdAfterOldest(secs int64) string {
	return models.FormatTimestamp(time.Unix(oldestDealEpoch+secs, 0), sgt)
}

func TestHotScore_Example(t *testing.T) {
	d1 := HotScore(5, time.Unix(oldestDealEpoch+100000, 0))
	d2 := HotScore(-1, time.Unix(oldestDealEpoch+10, 0))

	if want := math.Log(5) + 100000.0/45000; math.Abs(d1-want) > 1e-9 {
		t.Errorf("HotScore(5) = %f, want %f", d1, want)
	}
	if want := 10.0 / 45000; math.Abs(d2-want) > 1e-9 {
		t.Errorf("HotScore(-1) = %f, want %f", d2, want)
	}
}

func TestHotScore_MonotonicInVotes(t *testing.T) {
	created := time.Unix(oldestDealEpoch+5000, 0)
	prev := HotScore(1, created)
	for v := 2; v <= 200; v++ {
		s := HotScore(v, created)
		if s < prev {
			t.Fatalf("HotScore(%d) = %f < HotScore(%d) = %f", v, s, v-1, prev)
		}
		prev = s
	}

	prev = HotScore(-1, created)
	for v := -2; v >= -200; v-- {
		s := HotScore(v, created)
		if s > prev {
			t.Fatalf("HotScore(%d) = %f > HotScore(%d) = %f", v, s, v+1, prev)
		}
		prev = s
	}
}

func TestSortByHotScore(t *testing.T) {
	deals := []models.Deal{
		{ID: "d2", CreatedAt: createdAfterOldest(10)},
		{ID: "d1", CreatedAt: createdAfterOldest(100000)},
		{ID: "d3", CreatedAt: createdAfterOldest(50000)},
	}
	votes := map[string]int{"d1": 5, "d2": -1}

	got := SortByHotScore(deals, votes, sgt)
	assertOrder(t, got, "d1", "d3", "d2")
}

func TestSortByHotScore_UsesZone(t *testing.T) {
	// Same wall clock, read in a zone 8h behind, is 8h newer in epoch seconds.
	deals := []models.Deal{{ID: "a", CreatedAt: createdAfterOldest(0)}}
	votes := map[string]int{}

	inSGT := HotScore(0, mustZoned(t, deals[0].CreatedAt, sgt))
	inUTC := HotScore(0, mustZoned(t, deals[0].CreatedAt, time.UTC))
	if math.Abs((inUTC-inSGT)-8*3600.0/45000) > 1e-9 {
		t.Errorf("zone offset not applied: sgt=%f utc=%f", inSGT, inUTC)
	}
	if got := SortByHotScore(deals, votes, sgt); len(got) != 1 {
		t.Errorf("expected 1 deal, got %d", len(got))
	}
}

func TestSortByHotScore_StableTies(t *testing.T) {
	ts := createdAfterOldest(1000)
	deals := []models.Deal{
		{ID: "a", CreatedAt: ts},
		{ID: "b", CreatedAt: ts},
		{ID: "c", CreatedAt: ts},
	}
	got := SortByHotScore(deals, nil, sgt)
	assertOrder(t, got, "a", "b", "c")
}

func TestSortByHotScore_Permutation(t *testing.T) {
	var deals []models.Deal
	votes := map[string]int{}
	for i := 0; i < 25; i++ {
		id := string(rune('a' + i))
		deals = append(deals, models.Deal{ID: id, CreatedAt: createdAfterOldest(int64(i * 7919 % 100000))})
		votes[id] = (i*37)%11 - 5
	}

	got := SortByHotScore(deals, votes, sgt)
	if len(got) != len(deals) {
		t.Fatalf("len = %d, want %d", len(got), len(deals))
	}
	seen := map[string]bool{}
	for _, d := range got {
		seen[d.ID] = true
	}
	if len(seen) != len(deals) {
		t.Errorf("output is not a permutation of the input: %d distinct ids", len(seen))
	}
	for i := 1; i < len(got); i++ {
		prev := HotScore(votes[got[i-1].ID], mustZoned(t, got[i-1].CreatedAt, sgt))
		cur := HotScore(votes[got[i].ID], mustZoned(t, got[i].CreatedAt, sgt))
		if cur > prev {
			t.Errorf("position %d: score %f > previous %f", i, cur, prev)
		}
	}
}

func TestSortByNewest(t *testing.T) {
	deals := []models.Deal{
		{ID: "old", CreatedAt: "2020-07-14T10:00:00.000"},
		{ID: "bad", CreatedAt: "yesterday"},
		{ID: "new", CreatedAt: "2020-08-01T09:30:00.000"},
		{ID: "mid", CreatedAt: "2020-07-20T23:59:59.999"},
	}
	got := SortByNewest(deals)
	assertOrder(t, got, "new", "mid", "old", "bad")
}

func TestSortByNewest_AcceptsVariablePrecision(t *testing.T) {
	deals := []models.Deal{
		{ID: "a", CreatedAt: "2020-07-14T10:00:00"},
		{ID: "b", CreatedAt: "2020-07-14T10:00:00.5"},
	}
	got := SortByNewest(deals)
	assertOrder(t, got, "b", "a")
}

func TestLimitDeals(t *testing.T) {
	deals := make([]models.Deal, 10)
	if got := limitDeals(deals, 8); len(got) != 8 {
		t.Errorf("limit 8: got %d", len(got))
	}
	if got := limitDeals(deals, 0); len(got) != 10 {
		t.Errorf("limit 0: got %d", len(got))
	}
	if got := limitDeals(deals[:3], 8); len(got) != 3 {
		t.Errorf("short list: got %d", len(got))
	}
}

func mustZoned(t *testing.T, s string, loc *time.Location) time.Time {
	t.Helper()
	ts, err := models.ParseZonedTimestamp(s, loc)
	if err != nil {
		t.Fatalf("ParseZonedTimestamp(%q): %v", s, err)
	}
	return ts
}

func assertOrder(t *testing.T, deals []models.Deal, want ...string) {
	t.Helper()
	if len(deals) != len(want) {
		t.Fatalf("got %d deals, want %d", len(deals), len(want))
	}
	for i, id := range want {
		if deals[i].ID != id {
			got := make([]string, len(deals))
			for j, d := range deals {
				got[j] = d.ID
			}
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
