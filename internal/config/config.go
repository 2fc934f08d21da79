package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lostinspiration/loki-sink/internal/logging"
	"github.com/lostinspiration/loki-sink/internal/sink"
)

// Config holds the shipper's configuration surface.
type Config struct {
	URL           string
	Labels        map[string]string
	MinLevel      slog.Level
	BatchLimit    int
	FlushInterval time.Duration
	Timeout       time.Duration
	Compress      bool
}

// Load reads configuration from environment variables with sensible
// defaults. LOKI_URL is required; a malformed LOKI_LABELS is an error
// rather than a silent fallback, since mislabeled streams are hard to
// notice downstream.
func Load() (Config, error) {
	url := os.Getenv("LOKI_URL")
	if url == "" {
		return Config{}, fmt.Errorf("config: LOKI_URL is required")
	}

	labels, err := parseLabels(os.Getenv("LOKI_LABELS"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		URL:           url,
		Labels:        labels,
		MinLevel:      logging.ParseLevel(getenv("LOKI_MIN_LEVEL", "info")),
		BatchLimit:    getenvInt("LOKI_BATCH_LIMIT", sink.DefaultBatchLimit),
		FlushInterval: getenvDuration("LOKI_FLUSH_INTERVAL", time.Second),
		Timeout:       getenvDuration("LOKI_TIMEOUT", 10*time.Second),
		Compress:      getenvBool("LOKI_COMPRESS", true),
	}, nil
}

// parseLabels parses "key=value,key=value" into a label map. Empty input
// yields nil.
func parseLabels(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return nil, fmt.Errorf("config: malformed label %q in LOKI_LABELS", pair)
		}
		labels[k] = v
	}
	return labels, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
