package cartstore

import "time"

// DefaultTTL applies when neither options nor config set one.
const DefaultTTL = 30 * 24 * time.Hour

func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// ResolveTTL: explicit > configured seconds > DefaultTTL.
func ResolveTTL(explicit time.Duration, configuredSeconds int) time.Duration {
	if explicit > 0 {
		return explicit
	}
	if configuredSeconds > 0 {
		return time.Duration(configuredSeconds) * time.Second
	}
	return DefaultTTL
}
