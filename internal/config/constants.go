package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout = 60 * time.Second
	AIRequestTimeout   = 120 * time.Second
	AITestTimeout      = 1 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Retry timing: attempt n waits n*RetryBackoffBase before retrying
	RetryBackoffBase = 2 * time.Second
)

// Retry constants
const (
	// MaxRetryAttempts bounds calls to the AI provider per request,
	// counting the initial attempt
	MaxRetryAttempts = 3
)

// Conversation and response limits
const (
	// MaxHistoryMessages is the per-user, per-track conversation cap;
	// older messages are evicted oldest-first
	MaxHistoryMessages = 50

	// MaxSuggestions caps follow-up suggestions returned with a chat reply
	MaxSuggestions = 3

	// GradingDescriptionLimit truncates problem descriptions embedded in
	// grading prompts
	GradingDescriptionLimit = 1500

	// MaxSampleIOPairs caps the sample input/output pairs embedded in
	// grading prompts
	MaxSampleIOPairs = 3
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "codebot-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
