package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/dealboard/internal/models"
	"github.com/pauljones0/dealboard/internal/util"
)

const (
	colorUpcomingDeal = 3447003 // #3498DB
	colorActiveDeal   = 3066993 // #2ECC71
	colorExpiredDeal  = 9807270 // #95A5A6

	maxDescriptionLen = 300
	maxRetries        = 3
)

// Announcement is a posted deal as it is shown in the channel.
type Announcement struct {
	Deal       models.Deal
	Restaurant string
	Poster     string
	Tags       []string
	// DealURL links the embed title back to the deal page.
	DealURL string
}

// Client posts deal announcements to a Discord webhook. A Client with an empty
// webhook URL does nothing.
type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
	now         func() time.Time
	loc         *time.Location
}

// New creates a Client. Dates are compared against the current day in loc.
func New(webhookURL string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows 5 webhook requests per 2 seconds
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
		now:         time.Now,
		loc:         loc,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

// Send announces a new deal and returns the message ID.
func (c *Client) Send(ctx context.Context, a Announcement) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	embed := c.formatAnnouncement(a)
	var id string
	err := util.RetryWithBackoff(ctx, maxRetries, func(int) error {
		var err error
		id, err = c.sendAndGetMessageID(ctx, embed)
		return err
	})
	return id, err
}

// Update rewrites an existing announcement after the deal was edited.
func (c *Client) Update(ctx context.Context, messageID string, a Announcement) error {
	if !c.Enabled() || messageID == "" {
		return nil
	}
	embed := c.formatAnnouncement(a)
	return util.RetryWithBackoff(ctx, maxRetries, func(int) error {
		return c.updateDiscordMessage(ctx, messageID, embed)
	})
}

// Delete removes an announcement. A message that is already gone is not an error.
func (c *Client) Delete(ctx context.Context, messageID string) error {
	if !c.Enabled() || messageID == "" {
		return nil
	}
	return util.RetryWithBackoff(ctx, maxRetries, func(int) error {
		return c.deleteDiscordMessage(ctx, messageID)
	})
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	URL         string                `json:"url,omitempty"`
	Timestamp   string                `json:"timestamp,omitempty"`
	Color       int                   `json:"color,omitempty"`
	Thumbnail   discordEmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField   `json:"fields,omitempty"`
	Footer      discordEmbedFooter    `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func (c *Client) formatAnnouncement(a Announcement) discordEmbed {
	title := a.Restaurant
	if title == "" {
		title = "New deal"
	}

	description := util.StripTags(a.Deal.Description)
	if r := []rune(description); len(r) > maxDescriptionLen {
		description = string(r[:maxDescriptionLen-1]) + "…"
	}
	if a.Deal.Source != "" {
		description += fmt.Sprintf("\n\n[Source](%s)", a.Deal.Source)
	}

	fields := []discordEmbedField{
		{Name: "Valid", Value: fmt.Sprintf("%s → %s", a.Deal.Start, a.Deal.End), Inline: true},
	}
	if a.Poster != "" {
		fields = append(fields, discordEmbedField{Name: "Posted By", Value: a.Poster, Inline: true})
	}
	if len(a.Tags) > 0 {
		fields = append(fields, discordEmbedField{Name: "Tags", Value: strings.Join(a.Tags, ", ")})
	}

	var footer discordEmbedFooter
	if domain := util.SourceDomain(a.Deal.Source); domain != "" {
		footer.Text = domain
	}

	var isoTimestamp string
	if created, err := models.ParseZonedTimestamp(a.Deal.CreatedAt, c.loc); err == nil {
		isoTimestamp = created.Format(time.RFC3339)
	}

	return discordEmbed{
		Title:       title,
		URL:         a.DealURL,
		Description: description,
		Timestamp:   isoTimestamp,
		Color:       c.dealColor(a.Deal),
		Thumbnail:   discordEmbedThumbnail{URL: a.Deal.Image},
		Fields:      fields,
		Footer:      footer,
	}
}

// dealColor reflects whether the deal runs today. Dates are yyyy-MM-dd, so they
// compare as strings.
func (c *Client) dealColor(d models.Deal) int {
	today := c.now().In(c.loc).Format(models.DateLayout)
	switch {
	case d.End != "" && d.End < today:
		return colorExpiredDeal
	case d.Start != "" && d.Start > today:
		return colorUpcomingDeal
	}
	return colorActiveDeal
}

func (c *Client) do(ctx context.Context, method, target string, embed *discordEmbed) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, util.Permanent(err)
	}

	var body io.Reader
	if embed != nil {
		payloadBytes, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{*embed}})
		if err != nil {
			return nil, util.Permanent(err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, util.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return bodyBytes, nil
	}
	statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(bodyBytes)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, statusErr
	}
	return nil, util.Permanent(statusErr)
}

// StatusError is a non-2xx answer from Discord.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord status: %s, body: %s", e.Status, e.Body)
}

func (c *Client) sendAndGetMessageID(ctx context.Context, embed discordEmbed) (string, error) {
	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", util.Permanent(err)
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	bodyBytes, err := c.do(ctx, http.MethodPost, parsedURL.String(), &embed)
	if err != nil {
		return "", err
	}
	var msgResponse discordMessageResponse
	if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
		return "", util.Permanent(err)
	}
	return msgResponse.ID, nil
}

func (c *Client) messageURL(messageID string) (string, error) {
	parsedBaseURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s%s/messages/%s", parsedBaseURL.Scheme, parsedBaseURL.Host, parsedBaseURL.Path, messageID), nil
}

func (c *Client) updateDiscordMessage(ctx context.Context, messageID string, embed discordEmbed) error {
	target, err := c.messageURL(messageID)
	if err != nil {
		return util.Permanent(err)
	}
	_, err = c.do(ctx, http.MethodPatch, target, &embed)
	return err
}

func (c *Client) deleteDiscordMessage(ctx context.Context, messageID string) error {
	target, err := c.messageURL(messageID)
	if err != nil {
		return util.Permanent(err)
	}
	_, err = c.do(ctx, http.MethodDelete, target, nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil
	}
	return err
}
