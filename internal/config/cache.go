package config

import (
	"strings"
	"time"
)

// CacheConfig controls the Redis response cache in front of the public
// service catalog. Writes to the catalog purge every key under Prefix.
// KeyStrategy picks the key parts: route_query (default), route,
// method_route or method_route_query. The concrete path is always part
// of the key.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 5*time.Minute),
		KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
		Prefix:       strings.TrimSuffix(envStr("CACHE_PREFIX", "catalog"), ":"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 256<<10),
	}
	switch cfg.KeyStrategy {
	case "route", "method_route", "method_route_query":
	default:
		cfg.KeyStrategy = "route_query"
	}
	return cfg
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
