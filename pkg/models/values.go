// Package models defines the core domain models for function-model authoring.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const maxModelNameLength = 255

var (
	// ErrEmptyModelName indicates a model name was empty or whitespace-only.
	ErrEmptyModelName = errors.New("model name cannot be empty")

	// ErrModelNameTooLong indicates a model name exceeded the maximum length.
	ErrModelNameTooLong = fmt.Errorf("model name cannot exceed %d characters", maxModelNameLength)

	// ErrInvalidVersion indicates a version string was not in major.minor.patch form.
	ErrInvalidVersion = errors.New("invalid version string")

	// ErrInvalidRetryPolicy indicates a retry policy failed validation.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")

	// ErrInvalidRACI indicates a RACI assignment failed validation.
	ErrInvalidRACI = errors.New("invalid RACI assignment")
)

// ModelName is a validated function-model name.
type ModelName string

// NewModelName validates and constructs a model name. Leading and trailing
// whitespace is trimmed before validation.
func NewModelName(raw string) (ModelName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyModelName
	}

	if len(name) > maxModelNameLength {
		return "", ErrModelNameTooLong
	}

	return ModelName(name), nil
}

func (n ModelName) String() string {
	return string(n)
}

// Version is a semantic major.minor.patch version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a "major.minor.patch" string. Negative components and
// non-numeric segments are rejected.
func ParseVersion(raw string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}

	numbers := make([]int, 3)

	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
		}

		numbers[i] = value
	}

	return Version{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or higher than other.
func (v Version) Compare(other Version) int {
	pairs := [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}

	for _, pair := range pairs {
		if pair[0] < pair[1] {
			return -1
		}

		if pair[0] > pair[1] {
			return 1
		}
	}

	return 0
}

// BumpMajor returns the next major version.
func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1}
}

// BumpMinor returns the next minor version.
func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// BumpPatch returns the next patch version.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// MarshalJSON encodes the version as its string form.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a version from its string form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseVersion(raw)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BackoffStrategy controls how retry delays grow between attempts.
type BackoffStrategy string

const (
	BackoffImmediate   BackoffStrategy = "immediate"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

const maxRetryAttempts = 10

// RetryPolicy configures retry behavior for an action node.
type RetryPolicy struct {
	MaxAttempts     int             `json:"max_attempts"`
	Strategy        BackoffStrategy `json:"strategy"`
	BaseDelaySecond int             `json:"base_delay_seconds"`
}

// NewRetryPolicy validates and constructs a retry policy.
func NewRetryPolicy(maxAttempts int, strategy BackoffStrategy, baseDelaySeconds int) (RetryPolicy, error) {
	policy := RetryPolicy{
		MaxAttempts:     maxAttempts,
		Strategy:        strategy,
		BaseDelaySecond: baseDelaySeconds,
	}

	if err := policy.Validate(); err != nil {
		return RetryPolicy{}, err
	}

	return policy, nil
}

// Validate checks the policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 || p.MaxAttempts > maxRetryAttempts {
		return fmt.Errorf("%w: max attempts must be between 0 and %d", ErrInvalidRetryPolicy, maxRetryAttempts)
	}

	switch p.Strategy {
	case BackoffImmediate, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown backoff strategy %q", ErrInvalidRetryPolicy, p.Strategy)
	}

	if p.BaseDelaySecond < 0 {
		return fmt.Errorf("%w: base delay cannot be negative", ErrInvalidRetryPolicy)
	}

	return nil
}

// RACI assigns responsibility roles for an action node.
type RACI struct {
	Responsible []string `json:"responsible"`
	Accountable []string `json:"accountable,omitempty"`
	Consulted   []string `json:"consulted,omitempty"`
	Informed    []string `json:"informed,omitempty"`
}

// IsZero reports whether no roles are assigned at all.
func (r RACI) IsZero() bool {
	return len(r.Responsible) == 0 && len(r.Accountable) == 0 &&
		len(r.Consulted) == 0 && len(r.Informed) == 0
}

// Validate requires at least one responsible party once any role is assigned.
func (r RACI) Validate() error {
	if r.IsZero() {
		return nil
	}

	if len(r.Responsible) == 0 {
		return fmt.Errorf("%w: at least one responsible party is required", ErrInvalidRACI)
	}

	for _, party := range r.Responsible {
		if strings.TrimSpace(party) == "" {
			return fmt.Errorf("%w: responsible party cannot be blank", ErrInvalidRACI)
		}
	}

	return nil
}
