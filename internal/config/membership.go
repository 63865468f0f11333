package config

import (
	"time"
)

type MembershipConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	ListingCacheTTL time.Duration `yaml:"listing_cache_ttl"`
	ListingLimit    int           `yaml:"listing_limit"`
}

func loadMembershipConfig() *MembershipConfig {
	return &MembershipConfig{
		MaxRetries:      getEnvAsInt("MEMBERSHIP_MAX_RETRIES", 5),
		RetryBackoff:    getEnvAsDuration("MEMBERSHIP_RETRY_BACKOFF", 20*time.Millisecond),
		ListingCacheTTL: getEnvAsDuration("RIDE_LISTING_CACHE_TTL", 15*time.Second),
		ListingLimit:    getEnvAsInt("RIDE_LISTING_LIMIT", 100),
	}
}
