package record

import (
	"fmt"

	strs "github.com/amonks/spacetodo/internal/strings"
)

// Collation decides when two Task titles in the same Space collide.
//
// Clients always detect duplicates with the exact rule; a store may be
// configured to be stricter.
type Collation string

const (
	// CollationExact treats titles as equal when their trimmed forms are
	// byte-for-byte equal.
	CollationExact Collation = "exact"

	// CollationFold treats titles as equal when their trimmed forms are
	// equal under Unicode case folding.
	CollationFold Collation = "fold"
)

// ParseCollation parses a configured collation name. Empty means exact.
func ParseCollation(name string) (Collation, error) {
	switch Collation(name) {
	case "", CollationExact:
		return CollationExact, nil
	case CollationFold:
		return CollationFold, nil
	default:
		return "", fmt.Errorf("unknown collation %q (want %q or %q)", name, CollationExact, CollationFold)
	}
}

// Key returns the uniqueness key for title.
func (c Collation) Key(title string) string {
	title = NormalizeTitle(title)
	if c == CollationFold {
		return strs.Fold(title)
	}
	return title
}
