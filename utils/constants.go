package utils

// contextKey is the type used for request-scoped context values
type contextKey string

// Request context keys populated by handlers for downstream flows
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// Query constants
const (
	// DefaultForecastRowLimit caps baseline queries that do not ask for a limit
	DefaultForecastRowLimit = 10000

	// MaxForecastRowLimit is the hard ceiling for caller-provided limits
	MaxForecastRowLimit = 100000

	// DefaultAdjustmentListLimit caps adjustment listings without an explicit limit
	DefaultAdjustmentListLimit = 100
)

// Cache key suffixes, prefixed with the configured redis prefix
const (
	ForecastSummaryCacheKey = "forecast:summary"
	ForecastSeriesCacheKey  = "forecast:series"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
