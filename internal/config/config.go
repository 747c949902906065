// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds everything the server wires together. Credentials are
// optional; when absent the ambient AWS role applies.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string

	// UpstreamURL is the base of the content-retrieval service.
	UpstreamURL   string
	UpstreamToken string
	// FetchTimeout bounds a single upstream call.
	FetchTimeout time.Duration

	// TemplateBucket is where new tenant buckets copy their default tags from.
	TemplateBucket string
	// ReadOnly disables bucket provisioning, stores and copies.
	ReadOnly bool

	Port     string
	LogLevel string
}

// FromEnv loads configuration from environment variables.
func FromEnv() Config {
	return Config{
		Region:         os.Getenv("AWS_REGION"),
		AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UpstreamURL:    getEnv("UPSTREAM_URL", "http://localhost:8081"),
		UpstreamToken:  os.Getenv("UPSTREAM_TOKEN"),
		FetchTimeout:   time.Duration(getEnvInt("FETCH_TIMEOUT_MS", 20000)) * time.Millisecond,
		TemplateBucket: getEnv("TEMPLATE_BUCKET", "h3-template"),
		ReadOnly:       strings.EqualFold(os.Getenv("READ_ONLY"), "true"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n != 0 {
			return n
		}
	}
	return def
}
