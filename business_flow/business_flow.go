// Package businessflow contains the business logic for the application.
package businessflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/wmjones/demand-planning-api/config"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for logging and tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// Identity carries the authenticated user extracted from the access token.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// redisKey builds a namespaced cache key from the configured prefix
func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// cacheFingerprint derives a stable key suffix from an arbitrary payload so
// equivalent queries share a cache entry.
func cacheFingerprint(payload any) string {
	bs, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(bs)
	return hex.EncodeToString(sum[:])
}
