package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pauljones0/dealboard/internal/models"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		size int
		want [][]string
	}{
		{name: "empty", ids: nil, size: 2, want: nil},
		{name: "exact", ids: []string{"a", "b"}, size: 2, want: [][]string{{"a", "b"}}},
		{name: "remainder", ids: []string{"a", "b", "c"}, size: 2, want: [][]string{{"a", "b"}, {"c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunk(tt.ids, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("chunk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"b", "a", "", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupe() = %v, want %v", got, want)
	}
}

func TestMergeNewest(t *testing.T) {
	stamped := []stampedID{
		{ID: "old", CreatedAt: "2020-07-13T10:00:00.000"},
		{ID: "newest", CreatedAt: "2021-01-01T00:00:00.000"},
		{ID: "mid", CreatedAt: "2020-12-31T23:59:59.999"},
		{ID: "newest", CreatedAt: "2021-01-01T00:00:00.000"},
	}

	t.Run("unlimited", func(t *testing.T) {
		got := mergeNewest(cloneStamped(stamped), 0)
		want := []string{"newest", "mid", "old"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mergeNewest() = %v, want %v", got, want)
		}
	})
	t.Run("limited after merge", func(t *testing.T) {
		got := mergeNewest(cloneStamped(stamped), 2)
		want := []string{"newest", "mid"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mergeNewest() = %v, want %v", got, want)
		}
	})
}

func cloneStamped(s []stampedID) []stampedID {
	return append([]stampedID(nil), s...)
}

func TestVoteDelta(t *testing.T) {
	tests := []struct {
		prev, dir, want int
	}{
		{0, 1, 1},
		{0, -1, -1},
		{1, 1, 0},
		{1, -1, -2},
		{-1, 1, 2},
		{1, 0, -1},
		{-1, 0, 1},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := voteDelta(tt.prev, tt.dir); got != tt.want {
			t.Errorf("voteDelta(%d, %d) = %d, want %d", tt.prev, tt.dir, got, tt.want)
		}
	}
}

func TestSortIDsByCount(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	counts := map[string]int{"b": 3, "c": 3, "d": -1}

	got := sortIDsByCount(ids, counts, 0)
	want := []string{"b", "c", "a", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sortIDsByCount() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c", "d"}) {
		t.Errorf("input was modified: %v", ids)
	}
	if got := sortIDsByCount(ids, counts, 2); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("sortIDsByCount(limit 2) = %v", got)
	}
}

func TestDiffIDs(t *testing.T) {
	added, removed := diffIDs([]string{"a", "b", "c"}, []string{"c", "d", "d", "a"})
	if !reflect.DeepEqual(added, []string{"d"}) {
		t.Errorf("added = %v, want [d]", added)
	}
	if !reflect.DeepEqual(removed, []string{"b"}) {
		t.Errorf("removed = %v, want [b]", removed)
	}
}

func TestDocIDs(t *testing.T) {
	if got := voteDocID("u1", "d1"); got != "u1_d1" {
		t.Errorf("voteDocID() = %q", got)
	}
	if got := dealTagDocID("d1", "t1"); got != "d1_t1" {
		t.Errorf("dealTagDocID() = %q", got)
	}
	if got := followDocID(models.FollowRestaurant, "u1", "r1"); got != "restaurant_u1_r1" {
		t.Errorf("followDocID() = %q", got)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1-for-1 Burgers!", "1-for-1 burgers "},
		{"buy_one/get_one", "buy_one/get_one"},
		{"Café (50% off)", "caf   50  off "},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeQuery(tt.input); got != tt.want {
				t.Errorf("SanitizeQuery(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Free coffee, FREE cake")
	want := []string{"free", "coffee", "cake"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestPlainText(t *testing.T) {
	got := Tokenize(plainText(`<p>Half price <b>wings</b> <a href="https://x.example/promo">here</a></p>`))
	want := []string{"half", "price", "wings", "here"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize(plainText()) = %v, want %v", got, want)
	}
}

func TestMatchSearchDocs(t *testing.T) {
	docs := []searchDoc{
		{DealID: "old", Tokens: []string{"free", "coffee"}, Tags: []string{"t1"}, CreatedAt: "2021-01-01T00:00:00.000"},
		{DealID: "new", Tokens: []string{"free", "coffee", "cake"}, Tags: []string{"t1", "t2"}, CreatedAt: "2021-02-01T00:00:00.000"},
		{DealID: "other", Tokens: []string{"free", "tea"}, Tags: []string{"t1"}, CreatedAt: "2021-03-01T00:00:00.000"},
	}
	tests := []struct {
		name  string
		terms []string
		tags  []string
		want  []string
	}{
		{name: "all terms must match", terms: []string{"free", "coffee"}, want: []string{"new", "old"}},
		{name: "tags must all match", terms: []string{"free"}, tags: []string{"t1", "t2"}, want: []string{"new"}},
		{name: "tags only", tags: []string{"t1"}, want: []string{"other", "new", "old"}},
		{name: "no hit", terms: []string{"pizza"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchSearchDocs(docs, tt.terms, tt.tags); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matchSearchDocs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchDeals_EmptyQueryMatchesNothing(t *testing.T) {
	c := &Client{}
	for _, q := range []string{"", "   ", "!!! ???"} {
		ids, err := c.SearchDeals(context.Background(), q, nil)
		if err != nil || len(ids) != 0 {
			t.Errorf("SearchDeals(%q) = %v, %v, want no ids", q, ids, err)
		}
	}
}

func TestPageToken(t *testing.T) {
	token := encodePageToken("abc123")
	id, err := decodePageToken(token)
	if err != nil || id != "abc123" {
		t.Fatalf("decodePageToken(%q) = %q, %v", token, id, err)
	}
	for _, bad := range []string{"!!", ""} {
		if _, err := decodePageToken(bad); !errors.Is(err, models.ErrInvalidPageToken) {
			t.Errorf("decodePageToken(%q) error = %v, want ErrInvalidPageToken", bad, err)
		}
	}
}

func TestDefaultUsername(t *testing.T) {
	if got := defaultUsername("jane.doe@example.com"); got != "jane.doe" {
		t.Errorf("defaultUsername() = %q, want jane.doe", got)
	}
}
