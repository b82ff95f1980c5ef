package resilience

import (
	"strings"
	"time"
)

// Config is the base policy shared by every operation. Overrides adjust it
// for one operation ("ollama.analyze") or a family of operations ("s3"); the
// family is the part of the name before the first dot.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Overrides map[string]Override
}

// Override changes selected fields of the base policy. Zero fields inherit.
type Override struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	BreakerDisabled     bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// For resolves the effective policy of operation. A family override applies
// first and an exact-name override on top of it.
func (c Config) For(operation string) Config {
	out := c
	out.Overrides = nil
	if family, _, found := strings.Cut(operation, "."); found {
		if o, ok := c.Overrides[family]; ok {
			out = o.apply(out)
		}
	}
	if o, ok := c.Overrides[operation]; ok {
		out = o.apply(out)
	}
	return out.normalize()
}

func (o Override) apply(c Config) Config {
	if o.RetryMaxAttempts > 0 {
		c.RetryMaxAttempts = o.RetryMaxAttempts
	}
	if o.RetryInitialBackoff > 0 {
		c.RetryInitialBackoff = o.RetryInitialBackoff
	}
	if o.RetryMaxBackoff > 0 {
		c.RetryMaxBackoff = o.RetryMaxBackoff
	}
	if o.BreakerDisabled {
		c.BreakerEnabled = false
	}
	if o.BreakerMinRequests > 0 {
		c.BreakerMinRequests = o.BreakerMinRequests
	}
	if o.BreakerFailureRatio > 0 {
		c.BreakerFailureRatio = o.BreakerFailureRatio
	}
	if o.BreakerOpenTimeout > 0 {
		c.BreakerOpenTimeout = o.BreakerOpenTimeout
	}
	return c
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
