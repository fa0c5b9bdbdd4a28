// Package config loads operator-tunable policy that has no bearing on
// correctness — only on how aggressively escrow is bounded — following the
// same yaml.v3-unmarshal-then-Validate shape the rest of the ecosystem uses
// for its own service configs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EscrowPolicy carries the operator's escrow bounds. Observers that honour
// it leave entries in place rather than discarding them when a bound is hit.
// Both fields are zero-value unbounded, matching the "no automatic expiry"
// default the top-level design calls out as an explicit open point — setting
// either field only ever makes the policy stricter, never the reverse. The
// policy does not limit how many entries a table holds.
type EscrowPolicy struct {
	// MaxAge is the age bound checked by AllowsAge. Zero means unbounded. No
	// escrow observer calls AllowsAge, so MaxAge does not stop any redrive.
	MaxAge time.Duration `yaml:"max_age"`
	// MaxEntries bounds how many entries an observer will attempt to redrive
	// from one table in a single Notify call — a full-table-scanning
	// observer (missing-delegator, missing-issuer) stops once it has
	// attempted this many, leaving the remainder for the next trigger
	// instead of doing unbounded work on one notification. Zero means
	// unbounded.
	MaxEntries int `yaml:"max_entries"`
}

// Unbounded is the zero-value policy: every drain attempt proceeds
// regardless of age or table size.
var Unbounded = EscrowPolicy{}

// rawEscrowPolicy mirrors EscrowPolicy's YAML shape with MaxAge as a string
// so operators can write "10m"/"24h" rather than a raw nanosecond count —
// time.Duration has no UnmarshalYAML of its own, so this shadow struct plus
// time.ParseDuration stands in for one.
type rawEscrowPolicy struct {
	MaxAge     string `yaml:"max_age"`
	MaxEntries int    `yaml:"max_entries"`
}

// UnmarshalYAML decodes a max_age duration string ("10m", "24h") into
// EscrowPolicy.MaxAge.
func (p *EscrowPolicy) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawEscrowPolicy
	if err := unmarshal(&raw); err != nil {
		return err
	}
	p.MaxEntries = raw.MaxEntries
	if raw.MaxAge == "" {
		p.MaxAge = 0
		return nil
	}
	d, err := time.ParseDuration(raw.MaxAge)
	if err != nil {
		return fmt.Errorf("escrow policy: invalid max_age %q: %w", raw.MaxAge, err)
	}
	p.MaxAge = d
	return nil
}

// AllowsAge reports whether an entry of the given age may still be drained.
func (p EscrowPolicy) AllowsAge(age time.Duration) bool {
	return p.MaxAge <= 0 || age <= p.MaxAge
}

// AllowsCount reports whether attempting the (1-indexed) attemptNumber-th
// entry in one Notify pass is still within policy.
func (p EscrowPolicy) AllowsCount(attemptNumber int) bool {
	return p.MaxEntries <= 0 || attemptNumber <= p.MaxEntries
}

// Load reads an EscrowPolicy from a YAML file at path.
func Load(path string) (EscrowPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EscrowPolicy{}, fmt.Errorf("read escrow policy file: %w", err)
	}
	var p EscrowPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return EscrowPolicy{}, fmt.Errorf("parse escrow policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return EscrowPolicy{}, fmt.Errorf("validate escrow policy: %w", err)
	}
	return p, nil
}

// Validate rejects a policy with a negative bound — zero is the valid
// "unbounded" sentinel, but a negative duration or count is a config error.
func (p EscrowPolicy) Validate() error {
	if p.MaxAge < 0 {
		return fmt.Errorf("escrow policy: max_age must not be negative")
	}
	if p.MaxEntries < 0 {
		return fmt.Errorf("escrow policy: max_entries must not be negative")
	}
	return nil
}
