package identity

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Well-known UID roots.
const (
	FNORoot   = "1.2.840.113619.2"
	OFFISRoot = "1.2.276.0.7230010.3"
	// UUIDRoot is the PS3.5 B.2 root for UUID-derived UIDs.
	UUIDRoot = "2.25"
)

const (
	maxUIDLength = 64
	// minSuffixDigits keeps at least ~66 bits of the UUID in every UID.
	minSuffixDigits = 20
)

// UIDGenerator issues DICOM UIDs under a fixed namespace root.
type UIDGenerator struct {
	root string
}

// NewUIDGenerator validates root and returns a generator for it.
func NewUIDGenerator(root string) (*UIDGenerator, error) {
	if err := ValidateUIDRoot(root); err != nil {
		return nil, err
	}
	return &UIDGenerator{root: root}, nil
}

// Root returns the namespace root.
func (g *UIDGenerator) Root() string {
	return g.root
}

// NewUID returns root + "." + the decimal form of a random UUID, cut to the
// 64 character UID limit.
func (g *UIDGenerator) NewUID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("could not generate uuid: %w", err)
	}

	suffix := new(big.Int).SetBytes(u[:]).String()
	room := maxUIDLength - len(g.root) - 1
	if len(suffix) > room {
		suffix = suffix[:room]
	}
	return g.root + "." + suffix, nil
}

// ValidateUIDRoot checks that root is a dotted numeric UID prefix without
// leading zeros and leaves room for a unique suffix.
func ValidateUIDRoot(root string) error {
	if root == "" {
		return fmt.Errorf("uid root is empty")
	}
	if len(root)+1+minSuffixDigits > maxUIDLength {
		return fmt.Errorf("uid root %q is too long (max %d characters)", root, maxUIDLength-1-minSuffixDigits)
	}

	for _, comp := range strings.Split(root, ".") {
		if comp == "" {
			return fmt.Errorf("uid root %q has an empty component", root)
		}
		if len(comp) > 1 && comp[0] == '0' {
			return fmt.Errorf("uid root %q has a component with a leading zero", root)
		}
		for _, c := range comp {
			if c < '0' || c > '9' {
				return fmt.Errorf("uid root %q contains non-digit %q", root, c)
			}
		}
	}
	return nil
}
