package config

import (
	"time"

	"github.com/tendant/simple-verify/pkg/ratelimit"
)

// RateLimitConfig contains HTTP-level rate limiting settings. This throttle is
// coarse abuse protection in front of the service; the verification service
// keeps its own authoritative per-email issuance gate.
type RateLimitConfig struct {
	// Global rate limiting
	GlobalEnabled    bool
	GlobalCapacity   int
	GlobalRefillRate float64 // tokens per second

	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64 // tokens per second

	// Per-User rate limiting (for authenticated requests)
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64 // tokens per second

	// Verify endpoint specific limits (to slow down code guessing)
	VerifyCapacity   int
	VerifyRefillRate float64 // tokens per second

	// Resend endpoint specific limits (anonymous, enumeration-prone)
	ResendCapacity   int
	ResendRefillRate float64 // tokens per second

	// Issue endpoint specific limits
	IssueCapacity   int
	IssueRefillRate float64 // tokens per second

	// IncludeHeaders controls whether rate limit headers are included in responses
	IncludeHeaders bool
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		// Global: ~1000 requests per minute
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 16.67,

		// Per-IP: ~60 requests per minute
		PerIPEnabled:    true,
		PerIPCapacity:   60,
		PerIPRefillRate: 1.0,

		// Per-User: ~120 requests per minute
		PerUserEnabled:    true,
		PerUserCapacity:   120,
		PerUserRefillRate: 2.0,

		// Verify: 10 per minute per IP (guess protection)
		VerifyCapacity:   10,
		VerifyRefillRate: 0.167,

		// Resend: 5 per 5 minutes per IP
		ResendCapacity:   5,
		ResendRefillRate: 0.017,

		// Issue: 10 per minute per IP
		IssueCapacity:   10,
		IssueRefillRate: 0.167,

		IncludeHeaders: true,
	}
}

// NewRateLimitConfigFromEnv loads RateLimitConfig from standard environment
// variables. This is an optional convenience function - you can also populate
// the struct manually.
func NewRateLimitConfigFromEnv() RateLimitConfig {
	return RateLimitConfig{
		GlobalEnabled:     GetEnvBool("RATELIMIT_GLOBAL_ENABLED", true),
		GlobalCapacity:    GetEnvInt("RATELIMIT_GLOBAL_CAPACITY", 1000),
		GlobalRefillRate:  GetEnvFloat64("RATELIMIT_GLOBAL_REFILL_RATE", 16.67),
		PerIPEnabled:      GetEnvBool("RATELIMIT_PER_IP_ENABLED", true),
		PerIPCapacity:     GetEnvInt("RATELIMIT_PER_IP_CAPACITY", 60),
		PerIPRefillRate:   GetEnvFloat64("RATELIMIT_PER_IP_REFILL_RATE", 1.0),
		PerUserEnabled:    GetEnvBool("RATELIMIT_PER_USER_ENABLED", true),
		PerUserCapacity:   GetEnvInt("RATELIMIT_PER_USER_CAPACITY", 120),
		PerUserRefillRate: GetEnvFloat64("RATELIMIT_PER_USER_REFILL_RATE", 2.0),
		VerifyCapacity:    GetEnvInt("RATELIMIT_VERIFY_CAPACITY", 10),
		VerifyRefillRate:  GetEnvFloat64("RATELIMIT_VERIFY_REFILL_RATE", 0.167),
		ResendCapacity:    GetEnvInt("RATELIMIT_RESEND_CAPACITY", 5),
		ResendRefillRate:  GetEnvFloat64("RATELIMIT_RESEND_REFILL_RATE", 0.017),
		IssueCapacity:     GetEnvInt("RATELIMIT_ISSUE_CAPACITY", 10),
		IssueRefillRate:   GetEnvFloat64("RATELIMIT_ISSUE_REFILL_RATE", 0.167),
		IncludeHeaders:    GetEnvBool("RATELIMIT_INCLUDE_HEADERS", true),
	}
}

// ToMiddlewareConfig converts the config to a ratelimit.Config, keying the
// endpoint limits under the given route prefix (e.g. "/api/v1/verification").
func (r RateLimitConfig) ToMiddlewareConfig(prefix string) *ratelimit.Config {
	return &ratelimit.Config{
		GlobalEnabled:    r.GlobalEnabled,
		GlobalCapacity:   r.GlobalCapacity,
		GlobalRefillRate: r.GlobalRefillRate,

		PerIPEnabled:    r.PerIPEnabled,
		PerIPCapacity:   r.PerIPCapacity,
		PerIPRefillRate: r.PerIPRefillRate,

		PerUserEnabled:    r.PerUserEnabled,
		PerUserCapacity:   r.PerUserCapacity,
		PerUserRefillRate: r.PerUserRefillRate,

		EndpointLimits: map[string]ratelimit.EndpointLimit{
			"POST " + prefix + "/verify": {Capacity: r.VerifyCapacity, RefillRate: r.VerifyRefillRate},
			"POST " + prefix + "/resend": {Capacity: r.ResendCapacity, RefillRate: r.ResendRefillRate},
			"POST " + prefix + "/issue":  {Capacity: r.IssueCapacity, RefillRate: r.IssueRefillRate},
		},

		BucketTTL:      1 * time.Hour,
		IncludeHeaders: r.IncludeHeaders,
	}
}
