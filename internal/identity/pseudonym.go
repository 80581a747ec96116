package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Strategy selects how study pseudonyms are produced.
type Strategy string

const (
	StrategyRandom     Strategy = "random"  // prefix + random alphanumeric string
	StrategySequential Strategy = "integer" // prefix + zero-padded study index
	StrategyFile       Strategy = "file"    // prefix + pseudonym from a registry file
)

// DefaultRandomLength is the number of random characters appended to the prefix.
const DefaultRandomLength = 10

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrPseudonymNotFound is returned when a patient ID has no registry entry.
var ErrPseudonymNotFound = errors.New("patient id not found in pseudonym registry")

// ParseStrategy maps a user-facing name onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return StrategyRandom, nil
	case "integer", "sequential":
		return StrategySequential, nil
	case "file", "from-file":
		return StrategyFile, nil
	}
	return "", fmt.Errorf("unknown pseudonym strategy %q", s)
}

// ValidatePathComponent rejects values that cannot be used as a single
// directory name under the output root.
func ValidatePathComponent(s string) error {
	if s == "." || s == ".." {
		return fmt.Errorf("%q is not a valid directory name", s)
	}
	if strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%q must not contain a path separator", s)
	}
	return nil
}

// Subject is what an allocator knows about a study.
type Subject struct {
	Index     int // 0-based position in discovery order
	PatientID string
}

// Allocator produces the pseudonym for one study.
type Allocator interface {
	Allocate(s Subject) (string, error)
}

// AllocatorConfig configures NewAllocator.
type AllocatorConfig struct {
	Strategy Strategy
	Prefix   string
	// Base is the first sequential index; zero selects 1.
	Base int
	// Length is the random suffix length; zero selects DefaultRandomLength.
	Length       int
	RegistryFile string
}

// NewAllocator builds the allocator for a run that discovered studyCount studies.
func NewAllocator(cfg AllocatorConfig, studyCount int) (Allocator, error) {
	switch cfg.Strategy {
	case StrategyRandom, "":
		if cfg.Length < 0 {
			return nil, fmt.Errorf("random pseudonym length must be positive, got %d", cfg.Length)
		}
		return &RandomAllocator{Prefix: cfg.Prefix, Length: cfg.Length}, nil
	case StrategySequential:
		if cfg.Base < 0 {
			return nil, fmt.Errorf("sequential base must not be negative, got %d", cfg.Base)
		}
		return NewSequentialAllocator(cfg.Prefix, cfg.Base, studyCount), nil
	case StrategyFile:
		if cfg.RegistryFile == "" {
			return nil, fmt.Errorf("pseudonym strategy %q requires a registry file", cfg.Strategy)
		}
		reg, err := LoadRegistry(cfg.RegistryFile)
		if err != nil {
			return nil, err
		}
		return &RegistryAllocator{Prefix: cfg.Prefix, Registry: reg}, nil
	}
	return nil, fmt.Errorf("unknown pseudonym strategy %q", cfg.Strategy)
}

// RandomAllocator appends a random alphanumeric string to Prefix.
// Issued pseudonyms are not checked against each other; with 62^10 values the
// residual collision risk is accepted.
type RandomAllocator struct {
	Prefix string
	Length int
}

// Allocate returns a fresh random pseudonym.
func (a *RandomAllocator) Allocate(_ Subject) (string, error) {
	n := a.Length
	if n == 0 {
		n = DefaultRandomLength
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("could not read random bytes: %w", err)
		}
		for _, b := range buf {
			// Reject the tail above 4*62 to avoid modulo bias
			if b >= 248 {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return a.Prefix + string(out), nil
}

// SequentialAllocator numbers studies in discovery order. Rerunning over the
// same input reuses the same pseudonyms and so overwrites earlier output.
type SequentialAllocator struct {
	Prefix string
	Base   int
	Width  int
}

// NewSequentialAllocator sizes the padding from studyCount plus one digit, so
// the smallest pseudonym always carries a leading zero: 5 studies give
// PREFIX01..PREFIX05.
func NewSequentialAllocator(prefix string, base, studyCount int) *SequentialAllocator {
	if base == 0 {
		base = 1
	}
	return &SequentialAllocator{
		Prefix: prefix,
		Base:   base,
		Width:  len(strconv.Itoa(studyCount)) + 1,
	}
}

// Allocate returns Prefix + zero-padded (Base + s.Index).
func (a *SequentialAllocator) Allocate(s Subject) (string, error) {
	if s.Index < 0 {
		return "", fmt.Errorf("invalid study index %d", s.Index)
	}
	return fmt.Sprintf("%s%0*d", a.Prefix, a.Width, a.Base+s.Index), nil
}

// RegistryAllocator looks pseudonyms up by original patient ID.
type RegistryAllocator struct {
	Prefix   string
	Registry *Registry
}

// Allocate returns Prefix + the registered pseudonym, or ErrPseudonymNotFound.
func (a *RegistryAllocator) Allocate(s Subject) (string, error) {
	pseudonym, ok := a.Registry.Lookup(s.PatientID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrPseudonymNotFound, s.PatientID)
	}
	return a.Prefix + pseudonym, nil
}
