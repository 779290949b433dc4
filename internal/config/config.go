// Package config provides centralized configuration loaded from environment
// variables, plus the in-code registry data the scraper's heuristics use.
// Shared by both cmd/scrape and cmd/dashboard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Source site registry: URL layout of the reference site
// --------------------------------------------------------------------------

const (
	DefaultBaseURL = "https://www.sports-reference.com"

	// ProfilePathPrefix is the path segment shared by every player profile
	// and player index page.
	ProfilePathPrefix = "/cfb/players/"

	// ProfileSuffix terminates every individual profile URL.
	ProfileSuffix = ".html"

	// SchoolPathPrefix marks school affiliation links on profile pages.
	SchoolPathPrefix = "/cfb/schools/"
)

// IndexPageURL builds the listing URL for a letter and 1-based page number.
// Page 1 has no numeric suffix: a-index.html, a-index-2.html, a-index-3.html.
func IndexPageURL(baseURL, letter string, page int) string {
	suffix := ""
	if page > 1 {
		suffix = fmt.Sprintf("-%d", page)
	}
	return fmt.Sprintf("%s%s%s-index%s.html", baseURL, ProfilePathPrefix, strings.ToLower(letter), suffix)
}

// Alphabet lists the letters the index sweep covers, in order.
var Alphabet = strings.Split("ABCDEFGHIJKLMNOPQRSTUVWXYZ", "")

// --------------------------------------------------------------------------
// Request identity pool
// --------------------------------------------------------------------------

// UserAgents is the rotation pool; one is drawn uniformly per attempt.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
}

// BaseHeaders is sent with every request; User-Agent is added per attempt.
var BaseHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Referer":                   "https://www.sports-reference.com/",
	"DNT":                       "1",
}

// --------------------------------------------------------------------------
// Table classification rules, kept as data so extraction heuristics are
// testable and extensible independent of the extraction code
// --------------------------------------------------------------------------

// CaptionRules holds the caption-substring predicates used to route tables
// into semantic buckets. All matching is lowercase substring containment.
type CaptionRules struct {
	// SkipTerms excludes a table from the season/general pass only; the
	// other passes re-scan all tables with their own predicate, so a
	// game-log table skipped here is still claimed by the game-log pass.
	SkipTerms []string

	CareerTerms   []string
	GameLogTerms  []string
	AdvancedTerms []string
}

// DefaultCaptionRules mirrors the classification used by the source site's
// stat tables.
func DefaultCaptionRules() CaptionRules {
	return CaptionRules{
		SkipTerms:     []string{"game log", "game finder", "splits finder", "navigation", "menu"},
		CareerTerms:   []string{"career"},
		GameLogTerms:  []string{"game log"},
		AdvancedTerms: []string{"advanced", "analytics", "efficiency"},
	}
}

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Source site
	BaseURL string

	// Fetch behavior
	MinRequestInterval time.Duration
	RequestTimeout     time.Duration
	MaxRetries         int
	Concurrency        int
	Proxies            []string

	// Storage
	StorageMode string // file or postgres
	DataDir     string

	// Database (postgres storage mode)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Dashboard server
	APIHost          string
	APIPort          int
	CORSAllowOrigins []string
	CacheEnabled     bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL: envOr("SCRAPE_BASE_URL", DefaultBaseURL),

		MinRequestInterval: time.Duration(envInt("MIN_REQUEST_INTERVAL_MS", 3000)) * time.Millisecond,
		RequestTimeout:     time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:         envInt("MAX_RETRIES", 5),
		Concurrency:        envInt("MAX_CONCURRENT_REQUESTS", 2),
		Proxies:            envList("PROXIES", nil),

		StorageMode: strings.ToLower(envOr("STORAGE_MODE", "file")),
		DataDir:     envOr("DATA_DIR", "storage/player_data"),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envInt("API_PORT", envInt("PORT", 8000)),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),
		CacheEnabled: envBool("CACHE_ENABLED", true),
	}

	if cfg.StorageMode != "file" && cfg.StorageMode != "postgres" {
		return nil, fmt.Errorf("STORAGE_MODE must be file or postgres, got %q", cfg.StorageMode)
	}
	if cfg.StorageMode == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set when STORAGE_MODE=postgres")
	}

	return cfg, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
