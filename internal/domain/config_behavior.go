package domain

import (
	"fmt"
	"time"
)

// SetTrustTier changes the persisted tier.
// Returns the previous tier so callers can log the transition.
func (c *Config) SetTrustTier(tier TrustTier) (TrustTier, error) {
	if !tier.Valid() {
		return c.Policy.TrustTier, fmt.Errorf("invalid trust tier %d", int(tier))
	}
	previous := c.Policy.TrustTier
	c.Policy.TrustTier = tier
	return previous, nil
}

// AddAllowPattern appends an allow override.
// Returns an error if the pattern is empty or already present
func (c *Config) AddAllowPattern(pattern string) error {
	list, err := appendUnique(c.Policy.AllowPatterns, pattern)
	if err != nil {
		return fmt.Errorf("allow pattern: %w", err)
	}
	c.Policy.AllowPatterns = list
	return nil
}

// AddDenyPattern appends a deny override.
func (c *Config) AddDenyPattern(pattern string) error {
	list, err := appendUnique(c.Policy.DenyPatterns, pattern)
	if err != nil {
		return fmt.Errorf("deny pattern: %w", err)
	}
	c.Policy.DenyPatterns = list
	return nil
}

// RemovePattern drops pattern from both override lists.
// Returns an error if it was in neither
func (c *Config) RemovePattern(pattern string) error {
	var removed bool
	c.Policy.AllowPatterns, removed = without(c.Policy.AllowPatterns, pattern)
	var removedDeny bool
	c.Policy.DenyPatterns, removedDeny = without(c.Policy.DenyPatterns, pattern)
	if !removed && !removedDeny {
		return fmt.Errorf("pattern %q not found", pattern)
	}
	return nil
}

// MaxExecution returns the configured execution ceiling, falling back to the default.
func (p PolicySettings) MaxExecution() time.Duration {
	if p.MaxExecutionSeconds <= 0 {
		return DefaultExecutionTimeout
	}
	return time.Duration(p.MaxExecutionSeconds) * time.Second
}

// HasOverrides reports whether any allow or deny pattern is configured.
func (p PolicySettings) HasOverrides() bool {
	return len(p.AllowPatterns) > 0 || len(p.DenyPatterns) > 0
}

func appendUnique(list []string, value string) ([]string, error) {
	if value == "" {
		return list, fmt.Errorf("pattern cannot be empty")
	}
	for _, existing := range list {
		if existing == value {
			return list, fmt.Errorf("%q already present", value)
		}
	}
	return append(list, value), nil
}

func without(list []string, value string) ([]string, bool) {
	var out []string
	found := false
	for _, existing := range list {
		if existing == value {
			found = true
			continue
		}
		out = append(out, existing)
	}
	return out, found
}
