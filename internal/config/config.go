package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

const (
	FollowGraphFirestore = "firestore"
	FollowGraphNeo4j     = "neo4j"
)

type Config struct {
	ProjectID         string
	Port              string
	Location          *time.Location
	PublicBaseURL     string
	AuthEmailHeader   string
	DiscordWebhookURL string

	FollowGraphBackend string
	Neo4jURI           string
	Neo4jUsername      string
	Neo4jPassword      string

	WriteRateLimit   rate.Limit
	WriteRateBurst   int
	CommentsPageSize int
	// SourcePreviews enables fetching a deal's source page for an image.
	SourcePreviews bool
}

// Load reads configuration from the environment. Values from a .env file in the
// working directory fill in variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	zone := os.Getenv("TIME_ZONE")
	if zone == "" {
		zone = "Asia/Singapore"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", zone, err)
	}

	authHeader := os.Getenv("AUTH_EMAIL_HEADER")
	if authHeader == "" {
		authHeader = "X-Goog-Authenticated-User-Email"
	}

	discordWebhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if discordWebhookURL == "" {
		slog.Warn("DISCORD_WEBHOOK_URL not set, new deals will not be announced")
	}

	backend := strings.ToLower(os.Getenv("FOLLOW_GRAPH_BACKEND"))
	if backend == "" {
		backend = FollowGraphFirestore
	}
	if backend != FollowGraphFirestore && backend != FollowGraphNeo4j {
		return nil, fmt.Errorf("invalid FOLLOW_GRAPH_BACKEND %q: want %s or %s", backend, FollowGraphFirestore, FollowGraphNeo4j)
	}
	neo4jURI := os.Getenv("NEO4J_URI")
	if backend == FollowGraphNeo4j && neo4jURI == "" {
		return nil, fmt.Errorf("NEO4J_URI is required when FOLLOW_GRAPH_BACKEND=neo4j")
	}

	writeRate := 2.0
	if v := os.Getenv("WRITE_RATE_LIMIT"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid WRITE_RATE_LIMIT %q: want a positive number of requests per second", v)
		}
		writeRate = parsed
	}

	writeBurst, err := positiveInt("WRITE_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}
	pageSize, err := positiveInt("COMMENTS_PAGE_SIZE", 20)
	if err != nil {
		return nil, err
	}

	previews := true
	if v := os.Getenv("SOURCE_PREVIEWS"); v != "" {
		if previews, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid SOURCE_PREVIEWS %q: %w", v, err)
		}
	}

	return &Config{
		ProjectID:          projectID,
		Port:               port,
		Location:           loc,
		PublicBaseURL:      strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		AuthEmailHeader:    authHeader,
		DiscordWebhookURL:  discordWebhookURL,
		FollowGraphBackend: backend,
		Neo4jURI:           neo4jURI,
		Neo4jUsername:      os.Getenv("NEO4J_USERNAME"),
		Neo4jPassword:      os.Getenv("NEO4J_PASSWORD"),
		WriteRateLimit:     rate.Limit(writeRate),
		WriteRateBurst:     writeBurst,
		CommentsPageSize:   pageSize,
		SourcePreviews:     previews,
	}, nil
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return parsed, nil
}
