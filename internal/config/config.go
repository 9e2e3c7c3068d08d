// SPDX-License-Identifier: MIT

// Package config builds the process-wide configuration once at startup.
// The resulting struct is passed by reference into the request pipeline;
// handlers never read ambient global state.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	// HTTP
	Listen         string
	AllowedOrigins []string
	RateLimitRPM   int

	// Session store
	RedisAddr     string // empty disables Redis, memory-only mode
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	ClaimTTL      time.Duration

	// Intent adapter
	IntentTimeout time.Duration

	// Flow audit
	AuditDBPath     string // empty keeps the audit stream memory-only
	AuditExportPath string
	AuditBuffer     int

	// Reply catalog
	MessagesPath    string // optional YAML overriding built-in replies
	DefaultLanguage string

	// Ticketing
	SupportWhatsApp string // E.164 digits; empty omits the WhatsApp link

	// Telemetry
	TracingEnabled  bool
	TracingEndpoint string
	TracingExporter string // "grpc" or "http"
	ServiceName     string
}

// FromEnv assembles config from the environment with sane defaults.
func FromEnv() AppConfig {
	return AppConfig{
		Listen:         ParseString("CONVOGATE_LISTEN", ":3001"),
		AllowedOrigins: splitCSV(ParseString("CONVOGATE_ALLOWED_ORIGINS", "*")),
		RateLimitRPM:   ParseInt("CONVOGATE_RATE_LIMIT_RPM", 120),

		RedisAddr:     ParseString("CONVOGATE_REDIS_ADDR", ""),
		RedisPassword: ParseString("CONVOGATE_REDIS_PASSWORD", ""),
		RedisDB:       ParseInt("CONVOGATE_REDIS_DB", 0),
		SessionTTL:    ParseDuration("CONVOGATE_SESSION_TTL", 30*time.Minute),
		ClaimTTL:      ParseDuration("CONVOGATE_CLAIM_TTL", 30*time.Second),

		IntentTimeout: ParseDuration("CONVOGATE_INTENT_TIMEOUT", 2*time.Second),

		AuditDBPath:     ParseString("CONVOGATE_AUDIT_DB", "data/flow-audit.db"),
		AuditExportPath: ParseString("CONVOGATE_AUDIT_EXPORT", "data/logs/flow-audit.csv"),
		AuditBuffer:     ParseInt("CONVOGATE_AUDIT_BUFFER", 1024),

		MessagesPath:    ParseString("CONVOGATE_MESSAGES", ""),
		DefaultLanguage: ParseString("CONVOGATE_DEFAULT_LANGUAGE", "es-AR"),

		SupportWhatsApp: ParseString("CONVOGATE_SUPPORT_WHATSAPP", ""),

		TracingEnabled:  ParseBool("CONVOGATE_TRACING_ENABLED", false),
		TracingEndpoint: ParseString("CONVOGATE_TRACING_ENDPOINT", "localhost:4318"),
		TracingExporter: ParseString("CONVOGATE_TRACING_EXPORTER", "http"),
		ServiceName:     ParseString("CONVOGATE_SERVICE_NAME", "convogate"),
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c AppConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session TTL must be positive, got %s", c.SessionTTL)
	}
	if c.ClaimTTL <= 0 {
		return fmt.Errorf("config: claim TTL must be positive, got %s", c.ClaimTTL)
	}
	if c.IntentTimeout <= 0 {
		return fmt.Errorf("config: intent timeout must be positive, got %s", c.IntentTimeout)
	}
	if c.AuditBuffer <= 0 {
		return fmt.Errorf("config: audit buffer must be positive, got %d", c.AuditBuffer)
	}
	switch c.TracingExporter {
	case "grpc", "http":
	default:
		return fmt.Errorf("config: unsupported tracing exporter %q", c.TracingExporter)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
