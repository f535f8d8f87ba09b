package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/dealboard/internal/models"
)

var sgt = time.FixedZone("SGT", 8*3600)

func newTestClient(webhookURL string) *Client {
	client := New(webhookURL, sgt)
	// Override rate limiter for tests to run fast
	client.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	client.now = func() time.Time { return time.Date(2021, 3, 15, 12, 0, 0, 0, sgt) }
	return client
}

func testAnnouncement() Announcement {
	return Announcement{
		Deal: models.Deal{
			ID:          "d1",
			Description: "<p>1-for-1 <b>burgers</b> all week</p>",
			Image:       "https://img.example.com/burger.jpg",
			Start:       "2021-03-14",
			End:         "2021-03-20",
			Source:      "https://shop.burgerplace.com.sg/promo",
			CreatedAt:   "2021-03-14T09:30:00.000",
		},
		Restaurant: "Burger Place",
		Poster:     "jane",
		Tags:       []string{"burgers", "1-for-1"},
		DealURL:    "https://deals.example.com/deals/d1",
	}
}

func TestFormatAnnouncement(t *testing.T) {
	client := newTestClient("https://discord.example.com/api/webhooks/1/x")
	embed := client.formatAnnouncement(testAnnouncement())

	if embed.Title != "Burger Place" {
		t.Errorf("Title = %q, want Burger Place", embed.Title)
	}
	if embed.URL != "https://deals.example.com/deals/d1" {
		t.Errorf("URL = %q", embed.URL)
	}
	wantDesc := "1-for-1 burgers all week\n\n[Source](https://shop.burgerplace.com.sg/promo)"
	if embed.Description != wantDesc {
		t.Errorf("Description = %q, want %q", embed.Description, wantDesc)
	}
	if embed.Footer.Text != "burgerplace.com.sg" {
		t.Errorf("Footer = %q, want burgerplace.com.sg", embed.Footer.Text)
	}
	if embed.Timestamp != "2021-03-14T09:30:00+08:00" {
		t.Errorf("Timestamp = %q", embed.Timestamp)
	}
	if embed.Color != colorActiveDeal {
		t.Errorf("Color = %d, want active", embed.Color)
	}
	if embed.Thumbnail.URL != "https://img.example.com/burger.jpg" {
		t.Errorf("Thumbnail = %q", embed.Thumbnail.URL)
	}

	foundTags := false
	for _, field := range embed.Fields {
		if field.Name == "Tags" {
			foundTags = true
			if field.Value != "burgers, 1-for-1" {
				t.Errorf("Tags field value = %q", field.Value)
			}
		}
	}
	if !foundTags {
		t.Error("Tags field not found")
	}
}

func TestFormatAnnouncement_TruncatesDescription(t *testing.T) {
	client := newTestClient("https://discord.example.com/api/webhooks/1/x")
	a := testAnnouncement()
	a.Deal.Source = ""
	a.Deal.Description = strings.Repeat("a", 1000)

	embed := client.formatAnnouncement(a)
	if n := len([]rune(embed.Description)); n != maxDescriptionLen {
		t.Errorf("description length = %d, want %d", n, maxDescriptionLen)
	}
	if !strings.HasSuffix(embed.Description, "…") {
		t.Errorf("truncated description should end with an ellipsis")
	}
}

func TestDealColor(t *testing.T) {
	client := newTestClient("")
	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{name: "running", start: "2021-03-01", end: "2021-03-31", want: colorActiveDeal},
		{name: "ends today", start: "2021-03-01", end: "2021-03-15", want: colorActiveDeal},
		{name: "expired", start: "2021-03-01", end: "2021-03-14", want: colorExpiredDeal},
		{name: "upcoming", start: "2021-03-16", end: "2021-03-31", want: colorUpcomingDeal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.dealColor(models.Deal{Start: tt.start, End: tt.end}); got != tt.want {
				t.Errorf("dealColor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClient_Disabled(t *testing.T) {
	client := newTestClient("")
	id, err := client.Send(context.Background(), testAnnouncement())
	if err != nil || id != "" {
		t.Errorf("Send() on disabled client = %q, %v", id, err)
	}
	if err := client.Delete(context.Background(), "123"); err != nil {
		t.Errorf("Delete() on disabled client = %v", err)
	}
}

func TestClient_Send(t *testing.T) {
	// Mock Discord Server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("Expected wait=true query param")
		}

		var payload discordWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		if len(payload.Embeds) != 1 {
			t.Errorf("Expected 1 embed, got %d", len(payload.Embeds))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "12345", "channel_id": "67890"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.Send(context.Background(), testAnnouncement())
	if err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	if id != "12345" {
		t.Errorf("Expected ID 12345, got %s", id)
	}
}

func TestClient_SendRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id": "999"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.Send(context.Background(), testAnnouncement())
	if err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	if id != "999" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("id = %q after %d calls, want 999 after 2", id, calls)
	}
}

func TestClient_SendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Invalid Form Body"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Send(context.Background(), testAnnouncement())
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "Invalid Form Body") {
		t.Errorf("error should carry the response body, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 call, got %d", n)
	}
}

func TestClient_Update(t *testing.T) {
	messageID := "12345"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PATCH" {
			t.Errorf("Expected PATCH request, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/messages/"+messageID) {
			t.Errorf("URL %s does not end with message ID %s", r.URL.Path, messageID)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "12345"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL + "/api/webhooks/1/token")
	if err := client.Update(context.Background(), messageID, testAnnouncement()); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}
}

func TestClient_DeleteIgnoresMissingMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("Expected DELETE request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL + "/api/webhooks/1/token")
	if err := client.Delete(context.Background(), "gone"); err != nil {
		t.Errorf("Delete() of missing message returned %v", err)
	}
}
