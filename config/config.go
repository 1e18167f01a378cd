package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is the identification string the browser presents unless
// overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Engine  string // "rod" or "http"; default: "rod"
	Browser BrowserConfig
	Harvest HarvestConfig
	Retry   RetryConfig
	Output  OutputConfig
	Log     LogConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all requests.
	Proxy string

	// UserAgent is the custom identification string.
	UserAgent string

	// ExtraHeaders are sent with every request the page makes.
	ExtraHeaders map[string]string

	// Stealth injects anti-detection evasions before each navigation.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// HarvestConfig controls the navigation loop.
type HarvestConfig struct {
	// TargetAuthors is the number of counted author collections after which
	// the run ends.
	TargetAuthors int // default: 10

	// WaitTimeout bounds every landmark and citation wait.
	WaitTimeout time.Duration // default: 10s

	// PollInterval is how often a wait re-checks its condition.
	PollInterval time.Duration // default: 250ms

	// PauseMin and PauseMax bound the uniform random pause after each click.
	PauseMin time.Duration // default: 1s
	PauseMax time.Duration // default: 3s

	// EntryRPS caps entry page loads per second. 0 disables the limiter.
	EntryRPS float64 // default: 0

	// Seed seeds candidate selection and pause jitter. 0 picks a time seed.
	Seed uint64 // default: 0

	// CountEmpty counts an author toward the target even when no citation
	// block was collected.
	CountEmpty bool // default: true

	// SiteProfile is a YAML site profile path. Empty uses the built-in one.
	SiteProfile string

	// DumpFormat selects how page content is logged on fatal failures:
	// "html" or "markdown".
	DumpFormat string // default: "html"
}

// RetryConfig controls restarts after recoverable failures.
type RetryConfig struct {
	// MaxRetries is the number of consecutive recoverable failures tolerated
	// before the run aborts. 0 means unbounded.
	MaxRetries int // default: 5

	// InitialBackoff is the first delay after a failure.
	InitialBackoff time.Duration // default: 2s

	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration // default: 30s

	// Multiplier grows the delay between consecutive failures.
	Multiplier float64 // default: 2

	// Jitter is the randomization factor applied to each delay (0.0-1.0).
	Jitter float64 // default: 0.2
}

// OutputConfig controls where the records are written.
type OutputConfig struct {
	Path string // default: "all_bibtex_records.json"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Engine: envOr("HARVEST_ENGINE", "rod"),
		Browser: BrowserConfig{
			Headless:     envBoolOr("HARVEST_HEADLESS", true),
			NoSandbox:    envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("HARVEST_BROWSER_BIN"),
			Proxy:        os.Getenv("HARVEST_PROXY"),
			UserAgent:    envOr("HARVEST_USER_AGENT", DefaultUserAgent),
			ExtraHeaders: envMapOr("HARVEST_EXTRA_HEADERS", nil),
			Stealth:      envBoolOr("HARVEST_STEALTH", false),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Harvest: HarvestConfig{
			TargetAuthors: envIntOr("HARVEST_TARGET_AUTHORS", 10),
			WaitTimeout:   envDurationOr("HARVEST_WAIT_TIMEOUT", 10*time.Second),
			PollInterval:  envDurationOr("HARVEST_POLL_INTERVAL", 250*time.Millisecond),
			PauseMin:      envDurationOr("HARVEST_PAUSE_MIN", 1*time.Second),
			PauseMax:      envDurationOr("HARVEST_PAUSE_MAX", 3*time.Second),
			EntryRPS:      envFloatOr("HARVEST_ENTRY_RPS", 0),
			Seed:          envUintOr("HARVEST_SEED", 0),
			CountEmpty:    envBoolOr("HARVEST_COUNT_EMPTY", true),
			SiteProfile:   os.Getenv("HARVEST_SITE_PROFILE"),
			DumpFormat:    envOr("HARVEST_DUMP_FORMAT", "html"),
		},
		Retry: RetryConfig{
			MaxRetries:     envIntOr("HARVEST_MAX_RETRIES", 5),
			InitialBackoff: envDurationOr("HARVEST_BACKOFF_INITIAL", 2*time.Second),
			MaxBackoff:     envDurationOr("HARVEST_BACKOFF_MAX", 30*time.Second),
			Multiplier:     envFloatOr("HARVEST_BACKOFF_MULTIPLIER", 2.0),
			Jitter:         envFloatOr("HARVEST_BACKOFF_JITTER", 0.2),
		},
		Output: OutputConfig{
			Path: envOr("HARVEST_OUTPUT", "all_bibtex_records.json"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envUintOr(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "K=V,K=V". Entries without "=" are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	parts := envSliceOr(key, nil)
	if len(parts) == 0 {
		return fallback
	}
	result := make(map[string]string, len(parts))
	for _, p := range parts {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
