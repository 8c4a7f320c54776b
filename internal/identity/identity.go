// Package identity provides stable id generation, content hashing, and the
// sunwell: URI grammar shared across the memory core's stores.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NewID returns a fresh UUID v4 string, used for node, artifact, and
// session ids throughout the core.
func NewID() string {
	return uuid.New().String()
}

// ContentHash returns a stable hex-encoded SHA-256 digest of raw bytes.
// Equal hashes imply equal content; used by the lineage store to detect
// content-preserving renames.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DecisionID derives the deterministic id for a decision from its category,
// question, and choice, per spec §4.1: a hash over
// "category:question:choice". Re-recording an identical decision yields the
// same id, making the write a no-op rather than a duplicate.
func DecisionID(category, question, choice string) string {
	key := category + ":" + question + ":" + choice
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)

// slugSeen tracks per-process disambiguation counters. Collisions are rare
// (slugs are meant to be human-legible, not a uniqueness mechanism) but
// must still resolve deterministically within a process lifetime.
var (
	slugSeenMu sync.Mutex
	slugSeen   = map[string]int{}
)

const maxSlugLen = 30

// Slugify produces a lower-case, hyphen-joined, length-capped token from an
// arbitrary display name, appending "~N" on collision with a previously
// generated slug from the same base. Matches the
// `[a-z0-9][a-z0-9-]{0,29}(~<digits>)?` grammar from spec §6.
func Slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = strings.ReplaceAll(lower, " ", "-")
	lower = strings.ReplaceAll(lower, "_", "-")
	lower = slugInvalid.ReplaceAllString(lower, "-")
	lower = strings.Trim(lower, "-")
	for strings.Contains(lower, "--") {
		lower = strings.ReplaceAll(lower, "--", "-")
	}
	if lower == "" {
		lower = "item"
	}
	if len(lower) > maxSlugLen {
		lower = strings.TrimRight(lower[:maxSlugLen], "-")
	}

	slugSeenMu.Lock()
	defer slugSeenMu.Unlock()
	n := slugSeen[lower]
	slugSeen[lower] = n + 1
	if n == 0 {
		return lower
	}
	return fmt.Sprintf("%s~%d", lower, n)
}

// ResetSlugCounters clears the disambiguation counters. Exposed for tests
// that need deterministic slugs across cases.
func ResetSlugCounters() {
	slugSeenMu.Lock()
	defer slugSeenMu.Unlock()
	slugSeen = map[string]int{}
}

// Kind enumerates the sunwell: URI kinds.
type Kind string

const (
	KindLens    Kind = "lens"
	KindBinding Kind = "binding"
	KindProject Kind = "project"
)

// URI is a parsed sunwell:<kind>/<namespace>/<slug> identity.
type URI struct {
	Kind      Kind
	Namespace string
	Slug      string
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,29}(~[0-9]+)?$`)

// String renders the URI in canonical form.
func (u URI) String() string {
	return fmt.Sprintf("sunwell:%s/%s/%s", u.Kind, u.Namespace, u.Slug)
}

// ParseURI parses a sunwell:<kind>/<namespace>/<slug> string, validating the
// slug grammar. namespace is either "global" or a project slug.
func ParseURI(s string) (URI, error) {
	const prefix = "sunwell:"
	if !strings.HasPrefix(s, prefix) {
		return URI{}, fmt.Errorf("not a sunwell uri: %q", s)
	}
	rest := strings.TrimPrefix(s, prefix)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return URI{}, fmt.Errorf("malformed sunwell uri: %q", s)
	}
	kind := Kind(parts[0])
	switch kind {
	case KindLens, KindBinding, KindProject:
	default:
		return URI{}, fmt.Errorf("unknown uri kind: %q", parts[0])
	}
	if !slugPattern.MatchString(parts[2]) {
		return URI{}, fmt.Errorf("invalid slug: %q", parts[2])
	}
	return URI{Kind: kind, Namespace: parts[1], Slug: parts[2]}, nil
}
